package boltstore

import "github.com/cockroachdb/errors"

var (
	errStorageClosed = errors.New("storage closed")
	errReadOnlyTx    = errors.New("tx not writable")
)

// storage is a sorted key-value backend: bbolt on disk, or memory for tests.
type storage interface {
	BeginTx(writable bool) (storageTx, error)
	Close() error
}

type storageTx interface {
	Writable() bool

	// Bucket returns nil if the bucket doesn't exist.
	Bucket(name string) storageBucket

	// CreateBucket returns the existing bucket when there is one.
	CreateBucket(name string) (storageBucket, error)

	Commit() error

	// Rollback is safe to call after Commit.
	Rollback() error

	// Size returns the database size in bytes, or 0 if unknown.
	Size() int64
}

type storageBucket interface {
	// Get returns nil if not found. The slice is only valid during the tx.
	Get(key []byte) []byte
	Put(key, value []byte) error
	Cursor() storageCursor
	KeyCount() int
}

type storageCursor interface {
	First() (key, value []byte)
	Next() (key, value []byte)
}
