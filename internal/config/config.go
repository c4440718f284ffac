package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.hoot/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
}

// SessionConfig represents a per-session session.toml: the signed-in
// identity and the gateway settings for that session's daemon.
type SessionConfig struct {
	UserPhone   string `toml:"user_phone"`
	DisplayName string `toml:"display_name"`
	ListenAddr  string `toml:"listen_addr"`
	TokenSecret string `toml:"token_secret"`
	// ContactsFile overrides the default contact-book location.
	ContactsFile string `toml:"contacts_file"`
}

// DefaultListenAddr is used when a session config does not set one.
const DefaultListenAddr = "127.0.0.1:8787"

// Load reads the global config from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the global config to the given path, creating parent dirs
// as needed.
func Save(path string, cfg *Config) error {
	return write(path, cfg)
}

// LoadSession reads a per-session config and applies defaults.
func LoadSession(path string) (*SessionConfig, error) {
	var cfg SessionConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.UserPhone == "" {
		return nil, fmt.Errorf("session config %q has no user_phone", path)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	return &cfg, nil
}

// SaveSession writes a per-session config.
func SaveSession(path string, cfg *SessionConfig) error {
	return write(path, cfg)
}

func write(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(v)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
