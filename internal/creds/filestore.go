package creds

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// FileStore keeps one sqlite database file per connection under a data
// directory. The protocol layer writes the actual key material into the file;
// the store only manages the file's existence.
type FileStore struct {
	dir string
}

// NewFileStore creates the data directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create credential dir %s: %v", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the database file for a connection.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.dir, id+".db")
}

// Has reports whether a resumable credential exists for the connection.
// Opening the container creates the schema before pairing ever completes, so
// file existence alone is not enough: only a registered device row means the
// session can resume without a new QR pairing.
func (s *FileStore) Has(id string) bool {
	info, err := os.Stat(s.Path(id))
	if err != nil || info.Size() == 0 {
		return false
	}

	db, err := sql.Open("sqlite3", "file:"+s.Path(id)+"?mode=ro")
	if err != nil {
		return false
	}
	defer db.Close()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM whatsmeow_device").Scan(&n); err != nil {
		return false
	}
	return n > 0
}

// Delete removes the credential database and its sqlite journal siblings.
// Missing files are not an error so Delete is idempotent.
func (s *FileStore) Delete(id string) error {
	path := s.Path(id)
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %v", p, err)
		}
	}
	return nil
}
