package creds

// Store abstracts durable per-connection credential material. The blob
// internals are owned by the protocol layer; the store only answers
// "is there resumable material for this connection" and removes it when a
// connection is permanently deleted.
type Store interface {
	// Has reports whether credential material exists for the connection.
	Has(id string) bool
	// Path returns the storage location for the connection's material.
	Path(id string) string
	// Delete removes all material for the connection. After Delete returns
	// without error, Has must report false.
	Delete(id string) error
}
