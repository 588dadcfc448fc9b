package keyring

import (
	"testing"

	gokeyring "github.com/zalando/go-keyring"
)

func TestSetAndGet(t *testing.T) {
	gokeyring.MockInit()

	dsn := "postgres://podcheck@localhost:5432/podcheck?sslmode=disable"
	if err := Set(SecretDatabase, dsn); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	got, err := Get(SecretDatabase)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got != dsn {
		t.Errorf("Get() = %q, want %q", got, dsn)
	}

	if _, err := Get(SecretTelegramToken); err != ErrNotFound {
		t.Errorf("secrets must be stored independently, got err %v", err)
	}
}

func TestSetEmpty(t *testing.T) {
	gokeyring.MockInit()

	if err := Set(SecretWebhookSecret, ""); err == nil {
		t.Error("Set() with empty value should return an error")
	}
}

func TestDelete(t *testing.T) {
	gokeyring.MockInit()

	if err := Set(SecretTelegramToken, "123:abc"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := Delete(SecretTelegramToken); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := Get(SecretTelegramToken); err != ErrNotFound {
		t.Errorf("after Delete(), Get() error = %v, want %v", err, ErrNotFound)
	}
	if err := Delete(SecretTelegramToken); err != ErrNotFound {
		t.Errorf("second Delete() error = %v, want %v", err, ErrNotFound)
	}
}

func TestLookup(t *testing.T) {
	gokeyring.MockInit()

	_, ok, err := Lookup(SecretWebhookSecret)
	if err != nil || ok {
		t.Fatalf("Lookup() on empty keyring = ok %v, err %v", ok, err)
	}

	if err := Set(SecretWebhookSecret, "s3cret"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	v, ok, err := Lookup(SecretWebhookSecret)
	if err != nil || !ok || v != "s3cret" {
		t.Errorf("Lookup() = %q, %v, %v", v, ok, err)
	}
}

func TestIsAvailable(t *testing.T) {
	gokeyring.MockInit()

	if !IsAvailable() {
		t.Error("mock keyring should be available")
	}
}
