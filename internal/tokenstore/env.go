package tokenstore

import (
	"fmt"
	"os"
)

// Environ is the process environment as a key-value store. The OS
// implementation mutates the real environment, which survives for the
// lifetime of a warm serverless instance.
type Environ interface {
	Lookup(key string) (string, bool)
	Set(key, value string) error
	Unset(key string) error
}

// OSEnviron reads and writes the real process environment.
type OSEnviron struct{}

func (OSEnviron) Lookup(key string) (string, bool) { return os.LookupEnv(key) }
func (OSEnviron) Set(key, value string) error      { return os.Setenv(key, value) }
func (OSEnviron) Unset(key string) error           { return os.Unsetenv(key) }

// EnvBlob stores the record as a JSON string in one environment variable.
type EnvBlob struct {
	env Environ
	key string
}

// NewEnvStore creates a store backed by the variable key in env.
func NewEnvStore(env Environ, key string) *BlobStore {
	return NewBlobStore("env", &EnvBlob{env: env, key: key}, false)
}

func (e *EnvBlob) Read() ([]byte, error) {
	v, ok := e.env.Lookup(e.key)
	if !ok || v == "" {
		return nil, nil
	}

	return []byte(v), nil
}

func (e *EnvBlob) Write(data []byte) error {
	if err := e.env.Set(e.key, string(data)); err != nil {
		return fmt.Errorf("setting %s: %w", e.key, err)
	}

	return nil
}

func (e *EnvBlob) Delete() error {
	if err := e.env.Unset(e.key); err != nil {
		return fmt.Errorf("unsetting %s: %w", e.key, err)
	}

	return nil
}
