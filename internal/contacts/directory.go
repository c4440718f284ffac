package contacts

import (
	"context"

	"go.uber.org/zap"
)

// Directory maps normalized phone numbers to contact display names. It
// is built once per session from a Provider snapshot and is read-only
// afterwards, so it may be shared across goroutines without locking.
type Directory struct {
	names map[string]string
	size  int
}

// NewDirectory builds a directory from a contact snapshot. Contacts
// without phone numbers or without a name are excluded. When two
// contacts share a number, the one earlier in the snapshot wins; the
// snapshot order is fixed at build time, so resolution is stable across
// lookups.
func NewDirectory(snapshot []Contact) *Directory {
	d := &Directory{names: make(map[string]string)}
	for _, c := range snapshot {
		if c.Name == "" || len(c.PhoneNumbers) == 0 {
			continue
		}
		kept := false
		for _, pn := range c.PhoneNumbers {
			num := Normalize(pn.Number)
			if num == "" {
				continue
			}
			if _, taken := d.names[num]; taken {
				continue
			}
			d.names[num] = c.Name
			kept = true
		}
		if kept {
			d.size++
		}
	}
	return d
}

// Load reads the contact list from the provider and builds a directory.
// A permission denial is degraded, not fatal: the directory comes back
// empty and every lookup resolves to Unknown.
func Load(ctx context.Context, p Provider, logger *zap.Logger) (*Directory, error) {
	snapshot, err := p.Contacts(ctx)
	if err != nil {
		if err == ErrPermissionDenied {
			if logger != nil {
				logger.Warn("contacts permission denied, identity resolution degraded")
			}
			return NewDirectory(nil), nil
		}
		return nil, err
	}
	return NewDirectory(snapshot), nil
}

// Resolve returns the display name for a raw phone number, or Unknown
// when no contact carries a matching number. Pure lookup over the
// cached snapshot; no I/O.
func (d *Directory) Resolve(raw string) string {
	if name, ok := d.names[Normalize(raw)]; ok {
		return name
	}
	return Unknown
}

// Len returns the number of contacts that contributed at least one
// number to the directory.
func (d *Directory) Len() int {
	return d.size
}
