package reeldna

import (
	"github.com/himanishpuri/ReelDNA/internal/storage"
)

var _ Storage = (*storage.DBClient)(nil)

// NewSQLiteStorage opens the sqlite detection history at dbPath.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return db, nil
}
