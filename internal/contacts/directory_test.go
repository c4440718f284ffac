package contacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalize(t *testing.T) {
	variants := []string{
		"(555) 123-4567",
		"555.123.4567",
		"555 123 4567",
		"+1 555-123-4567",
		"5551234567",
	}
	// All punctuation variants of the same digits normalize identically
	// (the +1 variant gains the country digit).
	for _, v := range []string{variants[0], variants[1], variants[2], variants[4]} {
		if got := Normalize(v); got != "5551234567" {
			t.Errorf("Normalize(%q) = %q, want 5551234567", v, got)
		}
	}
	if got := Normalize("+1 555-123-4567"); got != "15551234567" {
		t.Errorf("Normalize with country code = %q, want 15551234567", got)
	}
	if got := Normalize("no digits here"); got != "" {
		t.Errorf("Normalize of non-numeric input = %q, want empty", got)
	}
}

func TestResolveFormattingInvariance(t *testing.T) {
	// Contact stored formatted, participant id stored bare.
	d := NewDirectory([]Contact{
		{ID: "1", Name: "Alice", PhoneNumbers: []PhoneNumber{{Number: "(555) 123-4567"}}},
	})
	if got := d.Resolve("5551234567"); got != "Alice" {
		t.Errorf("Resolve = %q, want Alice", got)
	}
	if got := d.Resolve("(555) 123-4567"); got != "Alice" {
		t.Errorf("Resolve of formatted input = %q, want Alice", got)
	}
}

func TestResolveUnknown(t *testing.T) {
	d := NewDirectory([]Contact{
		{ID: "1", Name: "Alice", PhoneNumbers: []PhoneNumber{{Number: "5551234567"}}},
	})
	if got := d.Resolve("9990001111"); got != Unknown {
		t.Errorf("Resolve = %q, want %q", got, Unknown)
	}
	// Empty directory resolves everything to Unknown.
	empty := NewDirectory(nil)
	if got := empty.Resolve("5551234567"); got != Unknown {
		t.Errorf("empty directory Resolve = %q, want %q", got, Unknown)
	}
}

func TestResolveFirstMatchStable(t *testing.T) {
	// Two contacts alias the same number; the earlier one always wins.
	snapshot := []Contact{
		{ID: "1", Name: "Alice", PhoneNumbers: []PhoneNumber{{Number: "555-000-1111"}}},
		{ID: "2", Name: "Bob", PhoneNumbers: []PhoneNumber{{Number: "(555) 000-1111"}}},
	}
	for i := 0; i < 50; i++ {
		d := NewDirectory(snapshot)
		if got := d.Resolve("5550001111"); got != "Alice" {
			t.Fatalf("iteration %d: Resolve = %q, want Alice", i, got)
		}
	}
}

func TestContactsWithoutNumbersExcluded(t *testing.T) {
	d := NewDirectory([]Contact{
		{ID: "1", Name: "NoNumbers"},
		{ID: "2", Name: "Blank", PhoneNumbers: []PhoneNumber{{Number: "ext."}}},
		{ID: "3", Name: "Carol", PhoneNumbers: []PhoneNumber{{Number: "5552223333"}}},
	})
	if d.Len() != 1 {
		t.Errorf("Len = %d, want 1", d.Len())
	}
	if got := d.Resolve("5552223333"); got != "Carol" {
		t.Errorf("Resolve = %q, want Carol", got)
	}
}

func TestLoadPermissionDenied(t *testing.T) {
	p := &FileProvider{Path: filepath.Join(t.TempDir(), "missing.toml")}
	d, err := Load(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Len() != 0 {
		t.Errorf("Len = %d, want 0 (degraded, empty directory)", d.Len())
	}
	if got := d.Resolve("5551234567"); got != Unknown {
		t.Errorf("Resolve = %q, want %q", got, Unknown)
	}
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.toml")
	book := `
[[contact]]
id = "c1"
name = "Alice"
numbers = ["(555) 123-4567", "555-999-0000"]

[[contact]]
id = "c2"
name = "Bob"
numbers = ["5550001111"]
`
	if err := os.WriteFile(path, []byte(book), 0600); err != nil {
		t.Fatal(err)
	}

	p := &FileProvider{Path: path}
	got, err := p.Contacts(context.Background())
	if err != nil {
		t.Fatalf("Contacts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d contacts, want 2", len(got))
	}
	if got[0].Name != "Alice" || len(got[0].PhoneNumbers) != 2 {
		t.Errorf("first contact = %+v, want Alice with 2 numbers", got[0])
	}

	d := NewDirectory(got)
	if name := d.Resolve("5559990000"); name != "Alice" {
		t.Errorf("Resolve alias = %q, want Alice", name)
	}
}

func TestFileProviderMissingIsDenied(t *testing.T) {
	p := &FileProvider{Path: filepath.Join(t.TempDir(), "nope.toml")}
	_, err := p.Contacts(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
}
