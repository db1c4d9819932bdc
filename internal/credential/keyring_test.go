package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func newArrayKeyring(items ...keyring.Item) *Keyring {
	ring := keyring.NewArrayKeyring(items)
	return &Keyring{open: func() (keyring.Keyring, error) { return ring, nil }}
}

func TestKeyring_SetGet(t *testing.T) {
	k := newArrayKeyring()

	if err := k.Set(MailPasswordKey("me@example.com"), "s3cret"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := k.Get("mail:me@example.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("Get = %q, want s3cret", got)
	}
}

func TestKeyring_GetMissing(t *testing.T) {
	k := newArrayKeyring()

	_, err := k.Get("mail:nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveMailPassword(t *testing.T) {
	k := newArrayKeyring(keyring.Item{Key: "mail:me@example.com", Data: []byte("from-ring")})

	got, err := ResolveMailPassword(k, "me@example.com", "from-config")
	if err != nil || got != "from-config" {
		t.Errorf("configured password: got %q, %v", got, err)
	}

	got, err = ResolveMailPassword(k, "me@example.com", "")
	if err != nil || got != "from-ring" {
		t.Errorf("keyring password: got %q, %v", got, err)
	}

	if _, err := ResolveMailPassword(k, "", ""); err == nil {
		t.Error("expected error without username")
	}
}
