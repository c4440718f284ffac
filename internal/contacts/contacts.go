package contacts

import (
	"context"
	"errors"
	"strings"
)

// Unknown is the sentinel display name returned when a phone number
// cannot be resolved against the contact book.
const Unknown = "Unknown"

// ErrPermissionDenied is returned by a Provider when the user has not
// granted access to the device contact list.
var ErrPermissionDenied = errors.New("contacts permission denied")

// PhoneNumber is a single raw phone number entry on a contact.
type PhoneNumber struct {
	Number string
}

// Contact is a read-only snapshot of a device contact.
type Contact struct {
	ID           string
	Name         string
	PhoneNumbers []PhoneNumber
}

// Provider is the device-contacts collaborator: a permission-gated bulk
// read of the contact list. Implementations return ErrPermissionDenied
// when access was not granted.
type Provider interface {
	Contacts(ctx context.Context) ([]Contact, error)
}

// Normalize reduces a raw phone number to its digit-only canonical
// form. Both sides of every identity comparison go through this, so
// formatting differences between the contact book and conversation
// participant ids never matter.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
