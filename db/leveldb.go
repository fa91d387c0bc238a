package db

import (
	"context"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = leveldb.ErrNotFound

// Reader is the read side of a store view.
type Reader interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	NewIterator(prefix []byte) iterator.Iterator
}

// Writer is a store view that can be mutated.
type Writer interface {
	Reader
	Put(key, value []byte) error
	Delete(key []byte) error
}

// LevelDB wraps the actual LevelDB connection
type LevelDB struct {
	conn *leveldb.DB
}

// NewLevelDB opens (or creates) a LevelDB instance at the given path
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{conn: db}, nil
}

// NewMemLevelDB opens a LevelDB instance backed by memory only.
func NewMemLevelDB() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{conn: db}, nil
}

// Close safely closes the LevelDB connection
func (l *LevelDB) Close() error {
	return l.conn.Close()
}

// txKey scopes a unit of work to the database that opened it.
type txKey struct {
	db *LevelDB
}

// Update runs fn as one atomic unit of work. Every write made through Store(ctx)
// inside fn is committed together when fn returns nil and discarded otherwise.
// Nested calls on the same database join the outer unit of work; a call on another
// database opens its own.
//
// LevelDB admits a single open transaction, so units of work are serialized.
func (l *LevelDB) Update(ctx context.Context, fn func(ctx context.Context) error) error {
	if l.InUpdate(ctx) {
		return fn(ctx)
	}

	tx, err := l.conn.OpenTransaction()
	if err != nil {
		return err
	}

	if err := fn(context.WithValue(ctx, txKey{l}, tx)); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		tx.Discard()
		return err
	}
	return nil
}

// Store returns the view fn should use: the unit of work on ctx if there is one,
// the committed database otherwise.
func (l *LevelDB) Store(ctx context.Context) Writer {
	if tx, ok := ctx.Value(txKey{l}).(*leveldb.Transaction); ok {
		return txView{tx: tx}
	}
	return dbView{conn: l.conn}
}

// InUpdate reports whether ctx carries an open unit of work on this database.
func (l *LevelDB) InUpdate(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{l}).(*leveldb.Transaction)
	return ok
}

// IsNotFound reports whether err is the missing-key error.
func IsNotFound(err error) bool {
	return errors.Is(err, leveldb.ErrNotFound)
}

type dbView struct {
	conn *leveldb.DB
}

func (v dbView) Get(key []byte) ([]byte, error) { return v.conn.Get(key, nil) }
func (v dbView) Has(key []byte) (bool, error)   { return v.conn.Has(key, nil) }
func (v dbView) Put(key, value []byte) error    { return v.conn.Put(key, value, nil) }
func (v dbView) Delete(key []byte) error        { return v.conn.Delete(key, nil) }
func (v dbView) NewIterator(prefix []byte) iterator.Iterator {
	return v.conn.NewIterator(util.BytesPrefix(prefix), nil)
}

type txView struct {
	tx *leveldb.Transaction
}

func (v txView) Get(key []byte) ([]byte, error) { return v.tx.Get(key, nil) }
func (v txView) Has(key []byte) (bool, error)   { return v.tx.Has(key, nil) }
func (v txView) Put(key, value []byte) error    { return v.tx.Put(key, value, nil) }
func (v txView) Delete(key []byte) error        { return v.tx.Delete(key, nil) }
func (v txView) NewIterator(prefix []byte) iterator.Iterator {
	return v.tx.NewIterator(util.BytesPrefix(prefix), nil)
}
