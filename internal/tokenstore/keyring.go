package tokenstore

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// keyringUser is the account name the record is filed under. There is a
// single owner account, so it never varies.
const keyringUser = "owner"

// keyringBlob keeps the record in the OS credential store.
type keyringBlob struct {
	service string
}

// NewKeyringStore creates a store backed by the OS keyring under service.
func NewKeyringStore(service string) *BlobStore {
	return NewBlobStore("keyring", &keyringBlob{service: service}, false)
}

func (k *keyringBlob) Read() ([]byte, error) {
	v, err := keyring.Get(k.service, keyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading keyring: %w", err)
	}

	return []byte(v), nil
}

func (k *keyringBlob) Write(data []byte) error {
	if err := keyring.Set(k.service, keyringUser, string(data)); err != nil {
		return fmt.Errorf("writing keyring: %w", err)
	}

	return nil
}

func (k *keyringBlob) Delete() error {
	if err := keyring.Delete(k.service, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting keyring entry: %w", err)
	}

	return nil
}
