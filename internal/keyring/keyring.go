package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/podcheck/internal/constants"
)

// Secret names stored under the podcheck keyring service.
const (
	SecretDatabase      = "database"
	SecretTelegramToken = "telegram-token"
	SecretWebhookSecret = "webhook-secret"
)

var (
	ErrNotFound           = errors.New("secret not found in keyring")
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

func account(name string) string {
	return constants.DefaultKeyringUser + ":" + name
}

// Get returns the named secret. Returns ErrNotFound if it was never stored.
func Get(name string) (string, error) {
	v, err := keyring.Get(constants.AppName, account(name))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return v, nil
}

func Set(name, value string) error {
	if value == "" {
		return fmt.Errorf("secret %q cannot be empty", name)
	}
	if err := keyring.Set(constants.AppName, account(name), value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", name, err)
	}
	return nil
}

func Delete(name string) error {
	err := keyring.Delete(constants.AppName, account(name))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", name, err)
	}
	return nil
}

// Lookup is Get with a missing secret reported as ok=false instead of an error.
func Lookup(name string) (string, bool, error) {
	v, err := Get(name)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
