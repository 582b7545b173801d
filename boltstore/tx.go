package boltstore

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/andreyvit/hashcol"
	"github.com/cockroachdb/errors"
)

type Tx struct {
	store   *Store
	stx     storageTx
	written bool
}

func (tx *Tx) Store() *Store { return tx.store }

func (tx *Tx) IsWritable() bool { return tx.stx.Writable() }

// Read runs f in a read-only transaction.
func (s *Store) Read(f func(tx *Tx) error) error {
	stx, err := s.st.BeginTx(false)
	if err != nil {
		return errors.Wrap(err, "boltstore: begin read")
	}
	defer stx.Rollback()
	s.ReadCount.Add(1)
	return safelyCall(f, &Tx{store: s, stx: stx})
}

// Write runs f in a writable transaction, committing if f succeeds. A panic in
// f is returned as an error and rolls the transaction back.
func (s *Store) Write(f func(tx *Tx) error) error {
	stx, err := s.st.BeginTx(true)
	if err != nil {
		return errors.Wrap(err, "boltstore: begin write")
	}
	defer stx.Rollback()
	tx := &Tx{store: s, stx: stx}
	if err := safelyCall(f, tx); err != nil {
		return err
	}
	if tx.written {
		s.WriteCount.Add(1)
	}
	s.lastSize.Store(stx.Size())
	if err := stx.Commit(); err != nil {
		return errors.Wrap(err, "boltstore: commit")
	}
	return nil
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

func rowKey(id hashcol.Value) ([]byte, error) {
	switch id.Kind() {
	case hashcol.KindText, hashcol.KindNumber:
		return hashcol.MsgPack.Encode(id)
	default:
		return nil, errors.Newf("boltstore: unsupported primary key %s", id.Kind())
	}
}

func (tx *Tx) get(ts *tableState, id hashcol.Value) (hashcol.Row, error) {
	key, err := rowKey(id)
	if err != nil {
		return nil, err
	}
	b := tx.stx.Bucket(ts.name)
	if b == nil {
		return nil, errors.Wrapf(ErrTableNotFound, "%s", ts.name)
	}
	raw := b.Get(key)
	if raw == nil {
		return nil, errors.Wrapf(hashcol.ErrRecordNotFound, "%s %v", ts.name, id)
	}
	return ts.decodeRow(raw)
}

func (tx *Tx) put(ts *tableState, id hashcol.Value, row hashcol.Row) error {
	key, err := rowKey(id)
	if err != nil {
		return err
	}
	raw, err := ts.encodeRow(row)
	if err != nil {
		return err
	}
	b, err := tx.stx.CreateBucket(ts.name)
	if err != nil {
		return err
	}
	tx.written = true
	return b.Put(key, raw)
}

func (tx *Tx) each(ctx context.Context, ts *tableState, f func(key []byte, row hashcol.Row) error) error {
	b := tx.stx.Bucket(ts.name)
	if b == nil {
		return nil
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := ts.decodeRow(v)
		if err != nil {
			return errors.Wrapf(err, "%s row %x", ts.name, k)
		}
		if err := f(k, row); err != nil {
			return err
		}
	}
	return nil
}

// updateAll applies f to every row. Rows are collected first, since bbolt
// cursors are not stable across writes to the same bucket.
func (tx *Tx) updateAll(ctx context.Context, ts *tableState, f func(row hashcol.Row) error) (int, error) {
	type pending struct {
		key []byte
		raw []byte
	}
	var updates []pending
	err := tx.each(ctx, ts, func(key []byte, row hashcol.Row) error {
		if err := f(row); err != nil {
			return err
		}
		raw, err := ts.encodeRow(row)
		if err != nil {
			return err
		}
		updates = append(updates, pending{append([]byte(nil), key...), raw})
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(updates) == 0 {
		return 0, nil
	}
	b := tx.stx.Bucket(ts.name)
	for _, u := range updates {
		if err := b.Put(u.key, u.raw); err != nil {
			return 0, err
		}
	}
	tx.written = true
	return len(updates), nil
}
