package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "dataprism-demo"

// SavePassword stores a connection password in the OS keyring.
func SavePassword(connName, password string) error {
	if password == "" {
		return nil
	}
	if err := keyring.Set(keyringService, connName, password); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

// LoadPassword returns the stored password for a connection, or "" if none is stored.
func LoadPassword(connName string) (string, error) {
	pw, err := keyring.Get(keyringService, connName)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("keyring get: %w", err)
	}
	return pw, nil
}

// DeletePassword removes a stored password. Missing entries are not an error.
func DeletePassword(connName string) error {
	if err := keyring.Delete(keyringService, connName); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}

// WithSecret returns conn with its password filled from the keyring when unset.
func WithSecret(conn Connection) (Connection, error) {
	if conn.Password != "" {
		return conn, nil
	}
	pw, err := LoadPassword(conn.Name)
	if err != nil {
		return conn, err
	}
	conn.Password = pw
	return conn, nil
}

// SaveConnection moves the password into the keyring, records the profile and persists the config.
func SaveConnection(cfg *Config, conn Connection, path string) error {
	if err := SavePassword(conn.Name, conn.Password); err != nil {
		return err
	}
	conn.Password = ""
	cfg.AddConnection(conn)
	return Save(cfg, path)
}
