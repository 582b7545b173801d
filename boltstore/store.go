// Package boltstore persists hashcol records in a bbolt file. Each table is a
// bucket of rows keyed by the msgpack encoding of the primary key; a row is
// one encoded map of column values, with the hash column stored inline as a
// nested map.
package boltstore

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/andreyvit/hashcol"
	"github.com/cockroachdb/errors"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var ErrTableNotFound = errors.New("table not found")

type Store struct {
	st     storage
	schema *hashcol.Schema
	logger *zap.SugaredLogger

	encoding hashcol.EncodingMethod
	tables   map[string]*tableState

	lastSize   atomic.Int64
	ReadCount  atomic.Uint64
	WriteCount atomic.Uint64
}

var _ hashcol.Engine = (*Store)(nil)

type Options struct {
	Logger *zap.SugaredLogger

	// Encoding applies to tables created by this store. Existing tables keep
	// the encoding they were created with.
	Encoding hashcol.EncodingMethod

	IsTesting bool
	MmapSize  int
}

func Open(path string, scm *hashcol.Schema, opt Options) (*Store, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 64
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, &bopt)
	if err != nil {
		return nil, errors.Wrapf(err, "boltstore: open %s", path)
	}
	s, err := open(&boltStorage{bdb: bdb}, scm, opt)
	if err != nil {
		bdb.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory returns a store that lives only as long as the process.
func OpenMemory(scm *hashcol.Schema, opt Options) (*Store, error) {
	return open(newMemStorage(), scm, opt)
}

func open(st storage, scm *hashcol.Schema, opt Options) (*Store, error) {
	if opt.Logger == nil {
		opt.Logger = zap.NewNop().Sugar()
	}
	if scm == nil {
		scm = hashcol.NewSchema()
	}
	s := &Store{
		st:       st,
		schema:   scm,
		logger:   opt.Logger,
		encoding: opt.Encoding,
		tables:   make(map[string]*tableState),
	}

	err := s.Write(func(tx *Tx) error {
		now := time.Now()
		for _, m := range scm.Models() {
			ts, err := prepareTable(tx, m, s.encoding, now)
			if err != nil {
				return err
			}
			if err := ts.migrate(tx); err != nil {
				return err
			}
			if err := ts.save(tx); err != nil {
				return err
			}
			s.tables[m.Table()] = ts
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Schema() *hashcol.Schema { return s.schema }

func (s *Store) Size() int64 {
	return s.lastSize.Load()
}

func (s *Store) Close() error {
	return s.st.Close()
}

func (s *Store) tableState(m *hashcol.Model) (*tableState, error) {
	ts := s.tables[m.Table()]
	if ts == nil {
		return nil, errors.Wrapf(ErrTableNotFound, "model %s is not part of the store schema", m.Name())
	}
	return ts, nil
}

// Columns returns the columns recorded when the table was last opened with a
// model, hash column included.
func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var cols []string
	err := s.Read(func(tx *Tx) error {
		ts, err := loadTableState(tx, table)
		if err != nil {
			return err
		}
		if ts == nil {
			return errors.Wrapf(ErrTableNotFound, "%s", table)
		}
		cols = ts.allColumns()
		return nil
	})
	return cols, err
}

func (s *Store) LoadRow(ctx context.Context, m *hashcol.Model, id hashcol.Value) (hashcol.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ts, err := s.tableState(m)
	if err != nil {
		return nil, err
	}
	var row hashcol.Row
	err = s.Read(func(tx *Tx) error {
		row, err = tx.get(ts, id)
		return err
	})
	return row, err
}

// WriteRow updates the given columns of the row, creating it if needed.
func (s *Store) WriteRow(ctx context.Context, m *hashcol.Model, id hashcol.Value, row hashcol.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ts, err := s.tableState(m)
	if err != nil {
		return err
	}
	return s.Write(func(tx *Tx) error {
		existing, err := tx.get(ts, id)
		if errors.Is(err, hashcol.ErrRecordNotFound) {
			existing = make(hashcol.Row)
		} else if err != nil {
			return err
		}
		for k, v := range row {
			existing[k] = v
		}
		return tx.put(ts, id, existing)
	})
}

func (s *Store) UpdateAll(ctx context.Context, m *hashcol.Model, cols hashcol.Row, overlayPatch *hashcol.Map) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ts, err := s.tableState(m)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.Write(func(tx *Tx) error {
		var err error
		n, err = tx.updateAll(ctx, ts, func(row hashcol.Row) error {
			for k, v := range cols {
				row[k] = v
			}
			if overlayPatch.Len() > 0 {
				blob := row[ts.HashColumn]
				var merged *hashcol.Map
				if blob.IsMap() {
					merged = blob.Map().Clone()
				} else {
					merged = hashcol.NewMap()
				}
				merged.Merge(overlayPatch)
				row[ts.HashColumn] = hashcol.MapValue(merged)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debugw("rows updated", "table", ts.name, "rows", n)
	return n, nil
}

// Each calls f for every row of m's table, in key order.
func (s *Store) Each(ctx context.Context, m *hashcol.Model, f func(row hashcol.Row) error) error {
	ts, err := s.tableState(m)
	if err != nil {
		return err
	}
	return s.Read(func(tx *Tx) error {
		return tx.each(ctx, ts, func(_ []byte, row hashcol.Row) error {
			return f(row)
		})
	})
}
