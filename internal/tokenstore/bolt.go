package tokenstore

import "github.com/alexjbarnes/dashboard-bff/internal/state"

// boltBlob keeps the record in the state database.
type boltBlob struct {
	st *state.State
}

// NewBoltStore creates a store backed by st. Closing the store closes st.
func NewBoltStore(st *state.State) *BlobStore {
	return NewBlobStore("bolt", &boltBlob{st: st}, false)
}

func (b *boltBlob) Read() ([]byte, error)   { return b.st.ReadToken() }
func (b *boltBlob) Write(data []byte) error { return b.st.WriteToken(data) }
func (b *boltBlob) Delete() error           { return b.st.DeleteToken() }
func (b *boltBlob) Close() error            { return b.st.Close() }
func (b *boltBlob) Path() string            { return b.st.Path() }
