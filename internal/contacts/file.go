package contacts

import (
	"context"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileProvider reads the contact book from a TOML file. It stands in
// for the device address book on headless installs; a missing file is
// treated the same as a denied contacts permission.
type FileProvider struct {
	Path string
}

type contactFile struct {
	Contacts []contactEntry `toml:"contact"`
}

type contactEntry struct {
	ID      string   `toml:"id"`
	Name    string   `toml:"name"`
	Numbers []string `toml:"numbers"`
}

// Contacts implements Provider.
func (p *FileProvider) Contacts(_ context.Context) ([]Contact, error) {
	var cf contactFile
	if _, err := toml.DecodeFile(p.Path, &cf); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPermissionDenied
		}
		return nil, fmt.Errorf("read contact book: %w", err)
	}

	out := make([]Contact, 0, len(cf.Contacts))
	for _, e := range cf.Contacts {
		c := Contact{ID: e.ID, Name: e.Name}
		for _, n := range e.Numbers {
			c.PhoneNumbers = append(c.PhoneNumbers, PhoneNumber{Number: n})
		}
		out = append(out, c)
	}
	return out, nil
}
