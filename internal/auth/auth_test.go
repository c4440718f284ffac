package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSignInNormalizesIdentity(t *testing.T) {
	m := NewMemory(nil)
	sess := m.SignIn("(555) 123-4567", "Me")
	if sess.UserID != "5551234567" {
		t.Errorf("UserID = %q, want 5551234567", sess.UserID)
	}
	if m.Current() != sess {
		t.Error("Current did not return the signed-in session")
	}
}

func TestListenersSeeTransitions(t *testing.T) {
	m := NewMemory(nil)
	var seen []*Session
	unlisten := m.Listen(func(s *Session) { seen = append(seen, s) })

	m.SignIn("5551234567", "Me")
	m.SignOut()
	unlisten()
	m.SignIn("5559990000", "Other")

	if len(seen) != 2 {
		t.Fatalf("listener fired %d times, want 2", len(seen))
	}
	if seen[0] == nil || seen[0].UserID != "5551234567" {
		t.Errorf("first transition = %+v, want sign-in of 5551234567", seen[0])
	}
	if seen[1] != nil {
		t.Errorf("second transition = %+v, want nil (sign-out)", seen[1])
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret", "hootd", time.Minute)
	sess := &Session{UserID: "5551234567"}

	tok, err := tokens.Issue(sess)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := tokens.Validate(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "5551234567" {
		t.Errorf("UserID = %q, want 5551234567", claims.UserID)
	}
}

func TestTokenWrongSecretRejected(t *testing.T) {
	tok, err := NewTokens("secret-a", "hootd", time.Minute).Issue(&Session{UserID: "111"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokens("secret-b", "hootd", time.Minute).Validate(tok); err == nil {
		t.Error("token signed with another secret validated")
	}
}

func TestTokenExpired(t *testing.T) {
	tokens := NewTokens("test-secret", "hootd", -time.Minute)
	tok, err := tokens.Issue(&Session{UserID: "111"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tokens.Validate(tok); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
}
