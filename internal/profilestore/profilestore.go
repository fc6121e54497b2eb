// Package profilestore archives serialized profiles in an embedded
// badger database so stopped sessions survive the process.
package profilestore

import (
	"bytes"
	"io"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

var ErrProfileNotFound = errors.New("profilestore: profile not found")

// Store handles profile reads and writes against one badger directory.
type Store struct {
	db *badger.DB
}

func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "opening profile archive")
	}
	return &Store{db: db}, nil
}

// Put opens a writer for the profile identified by id. The write becomes
// visible on Close.
func (s *Store) Put(id string) (io.WriteCloser, error) {
	return &profileWriter{
		buf: &bytes.Buffer{},
		txn: s.db.NewTransaction(true),
		id:  id,
	}, nil
}

// Get returns the serialized profile stored under id.
func (s *Store) Get(id string) ([]byte, error) {
	txn := s.db.NewTransaction(false)
	defer txn.Discard()
	item, err := txn.Get([]byte(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, errors.Wrap(err, "reading profile")
	}
	return item.ValueCopy(nil)
}

// List returns the ids of all archived profiles.
func (s *Store) List() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return ids, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GC runs one value-log garbage collection pass; badger recommends this
// periodically on long-lived stores.
func (s *Store) GC() {
	for {
		if err := s.db.RunValueLogGC(0.5); err != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type profileWriter struct {
	buf *bytes.Buffer
	txn *badger.Txn
	id  string
}

func (w *profileWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *profileWriter) Close() error {
	if err := w.txn.Set([]byte(w.id), w.buf.Bytes()); err != nil {
		w.txn.Discard()
		return errors.Wrap(err, "archiving profile")
	}
	return w.txn.Commit()
}
