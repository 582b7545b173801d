package boltstore

import (
	"context"
	"slices"
	"time"

	"github.com/andreyvit/hashcol"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const metaBucket = "_tables"

// tableState is persisted per table in the meta bucket, so a store can be
// introspected without a model and can notice schema changes.
type tableState struct {
	Columns    []string  `msgpack:"c"`
	HashColumn string    `msgpack:"h"`
	PrimaryKey string    `msgpack:"pk"`
	Encoding   string    `msgpack:"e"`
	Created    time.Time `msgpack:"ct"`
	LastSeen   time.Time `msgpack:"t"`

	name          string                 `msgpack:"-"`
	enc           hashcol.EncodingMethod `msgpack:"-"`
	oldHashColumn string                 `msgpack:"-"`
	logger        *zap.SugaredLogger     `msgpack:"-"`
}

func (ts *tableState) allColumns() []string {
	return append(slices.Clone(ts.Columns), ts.HashColumn)
}

func loadTableState(tx *Tx, table string) (*tableState, error) {
	meta := tx.stx.Bucket(metaBucket)
	if meta == nil {
		return nil, nil
	}
	raw := meta.Get([]byte(table))
	if raw == nil {
		return nil, nil
	}
	ts := &tableState{name: table}
	if err := msgpack.Unmarshal(raw, ts); err != nil {
		return nil, errors.Wrapf(err, "boltstore: decode state of table %s", table)
	}
	enc, err := hashcol.ParseEncoding(ts.Encoding)
	if err != nil {
		return nil, err
	}
	ts.enc = enc
	return ts, nil
}

func prepareTable(tx *Tx, m *hashcol.Model, enc hashcol.EncodingMethod, now time.Time) (*tableState, error) {
	if _, err := tx.stx.CreateBucket(m.Table()); err != nil {
		return nil, errors.Wrapf(err, "boltstore: create bucket %s", m.Table())
	}
	ts, err := loadTableState(tx, m.Table())
	if err != nil {
		return nil, err
	}
	logger := tx.store.logger.With("table", m.Table())
	if ts == nil {
		ts = &tableState{
			name:     m.Table(),
			enc:      enc,
			Encoding: enc.String(),
			Created:  now,
		}
	} else if ts.enc != enc {
		logger.Debugw("keeping table encoding", "encoding", ts.enc, "requested", enc)
	}
	ts.logger = logger

	if ts.HashColumn != "" && ts.HashColumn != m.HashColumn() {
		ts.oldHashColumn = ts.HashColumn
	}
	if ts.Columns != nil && !slices.Equal(ts.Columns, m.Columns()) {
		logger.Infow("columns changed", "old", ts.Columns, "new", m.Columns())
	}
	ts.Columns = m.Columns()
	ts.HashColumn = m.HashColumn()
	ts.PrimaryKey = m.PrimaryKey()
	ts.LastSeen = now
	return ts, nil
}

// migrate moves virtual attributes to a renamed hash column.
func (ts *tableState) migrate(tx *Tx) error {
	if ts.oldHashColumn == "" {
		return nil
	}
	old := ts.oldHashColumn
	ts.logger.Infow("renaming hash column", "old", old, "new", ts.HashColumn)
	start := time.Now()
	n, err := tx.updateAll(context.Background(), ts, func(row hashcol.Row) error {
		if v, ok := row[old]; ok {
			row[ts.HashColumn] = v
			delete(row, old)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "boltstore: rename hash column of %s", ts.name)
	}
	ts.oldHashColumn = ""
	ts.logger.Infow("renamed hash column", "rows", n, "ms", time.Since(start).Milliseconds())
	return nil
}

func (ts *tableState) save(tx *Tx) error {
	raw, err := msgpack.Marshal(ts)
	if err != nil {
		return err
	}
	meta, err := tx.stx.CreateBucket(metaBucket)
	if err != nil {
		return err
	}
	return meta.Put([]byte(ts.name), raw)
}

func (ts *tableState) decodeRow(raw []byte) (hashcol.Row, error) {
	v, err := ts.enc.Decode(raw)
	if err != nil {
		return nil, err
	}
	if !v.IsMap() {
		return nil, errors.Newf("boltstore: %s row is %s, not a map", ts.name, v.Kind())
	}
	entries := v.Map().Entries()
	row := make(hashcol.Row, len(entries))
	for _, e := range entries {
		row[e.Key] = e.Value
	}
	return row, nil
}

// encodeRow writes columns in table order, so encoded rows are deterministic.
func (ts *tableState) encodeRow(row hashcol.Row) ([]byte, error) {
	m := hashcol.NewMap()
	for _, col := range ts.allColumns() {
		if v, ok := row[col]; ok {
			m.Set(col, v)
		}
	}
	for _, k := range sortedKeys(row) {
		if !m.Has(k) {
			m.Set(k, row[k])
		}
	}
	return ts.enc.Encode(hashcol.MapValue(m))
}

func sortedKeys(row hashcol.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
