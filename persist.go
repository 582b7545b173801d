package hashcol

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Row is a stored record keyed by physical column name. The hash column value,
// when present, is always in stored form.
type Row map[string]Value

// Engine is the persistence collaborator. It never sees runtime values of
// virtual attributes: everything under the hash column is already encoded.
type Engine interface {
	// Columns lists the physical columns of a table, hash column included.
	Columns(ctx context.Context, table string) ([]string, error)

	// LoadRow returns ErrRecordNotFound when there is no row with this id.
	LoadRow(ctx context.Context, m *Model, id Value) (Row, error)

	// WriteRow inserts the row or updates the given columns of an existing one.
	WriteRow(ctx context.Context, m *Model, id Value, row Row) error

	// UpdateAll sets cols on every row of the table and merges overlayPatch
	// into each row's hash column, keeping keys the patch does not mention.
	UpdateAll(ctx context.Context, m *Model, cols Row, overlayPatch *Map) (int, error)
}

// NewID returns a fresh primary key for records saved without one.
func NewID() string {
	return uuid.NewString()
}

// Introspect defines a model whose declared columns are read from the engine.
// The table must contain opt.HashColumn.
func Introspect(ctx context.Context, eng Engine, scm *Schema, name string, opt ModelOptions) (*Model, error) {
	table := opt.Table
	if table == "" {
		table = name
	}
	cols, err := eng.Columns(ctx, table)
	if err != nil {
		return nil, errors.Wrapf(err, "introspect %s", table)
	}
	if opt.HashColumn == "" {
		return nil, configErrf(name, "hash column name must be present")
	}
	if !slices.Contains(cols, opt.HashColumn) {
		return nil, configErrf(name, "table %s has no column %q", table, opt.HashColumn)
	}
	opt.Columns = slices.DeleteFunc(slices.Clone(cols), func(c string) bool { return c == opt.HashColumn })
	return AddModel(scm, name, opt)
}

func Find(ctx context.Context, eng Engine, m *Model, id any) (*Record, error) {
	idv, err := FromAny(id)
	if err != nil {
		return nil, err
	}
	row, err := eng.LoadRow(ctx, m, idv)
	if err != nil {
		return nil, err
	}
	return m.Instantiate(row)
}

// Save writes rec. A new record is written in full and gets a NewID if its
// primary key is unset; a persisted one only writes changed columns. After a
// successful save, unsaved changes become PreviousChanges.
func Save(ctx context.Context, eng Engine, rec *Record) error {
	m := rec.model
	if rec.ID().IsNull() {
		if err := rec.writeColumn(m.primaryKey, Text(NewID())); err != nil {
			return err
		}
	}

	row := make(Row)
	if rec.persisted {
		for _, name := range rec.changes.ChangedNames() {
			if m.columnSet[name] {
				row[name] = rec.columns[name]
			}
		}
		if rec.changes.Changed(m.hashColumn) {
			row[m.hashColumn] = MapValue(rec.overlay.Stored())
		}
	} else {
		for _, col := range m.columns {
			row[col] = rec.columns[col]
		}
		row[m.hashColumn] = MapValue(rec.overlay.Stored())
	}

	if len(row) > 0 {
		if err := eng.WriteRow(ctx, m, rec.ID(), row); err != nil {
			return errors.Wrapf(err, "save %s %v", m.name, rec.ID())
		}
		m.logger.Debugw("record saved", "id", rec.ID().Any(), "columns", len(row), "new", !rec.persisted)
	}
	rec.persisted = true
	rec.changes.ChangesApplied()
	return nil
}

// SplitAttributes separates declared columns from virtual attributes. Entries
// of an explicit hash column value are treated as virtual attributes. Virtual
// values are returned in runtime form.
func SplitAttributes(m *Model, attrs *Map) (Row, *Map, error) {
	cols := make(Row)
	virtual := NewMap()
	for _, e := range attrs.Entries() {
		switch {
		case e.Key == m.hashColumn:
			switch e.Value.Kind() {
			case KindNull:
			case KindMap:
				for _, sub := range e.Value.Map().Entries() {
					if !m.IsVirtualAttributeName(sub.Key) {
						return nil, nil, attrErrf(m, sub.Key, ErrInvalidAttributeName, "in %s", m.hashColumn)
					}
					virtual.Set(sub.Key, sub.Value)
				}
			default:
				return nil, nil, attrErrf(m, e.Key, ErrInvalidHashColumnValue, "got %s", e.Value.Kind())
			}
		case m.columnSet[e.Key]:
			cols[e.Key] = e.Value
		case IsValidAttributeName(e.Key):
			virtual.Set(e.Key, e.Value)
		default:
			return nil, nil, attrErrf(m, e.Key, ErrInvalidAttributeName, "")
		}
	}
	return cols, virtual, nil
}

// UpdateAll is a predicate-free mass update. Declared columns in attrs are
// written as-is; virtual attributes are encoded and merged into every row's
// hash column. It returns the number of rows touched.
func UpdateAll(ctx context.Context, eng Engine, m *Model, attrs *Map) (int, error) {
	cols, virtual, err := SplitAttributes(m, attrs)
	if err != nil {
		return 0, err
	}
	patch, err := m.registry.Dump(m.hashColumn, MapValue(virtual))
	if err != nil {
		return 0, err
	}
	m.metrics.attributeOp(m.name, "update_all")
	n, err := eng.UpdateAll(ctx, m, cols, patch.Map())
	if err != nil {
		return 0, errors.Wrapf(err, "update all %s", m.name)
	}
	m.logger.Debugw("bulk update", "columns", len(cols), "virtual", virtual.Len(), "rows", n)
	return n, nil
}

// UpdateColumns writes attrs straight to storage, bypassing read-only checks
// and change tracking. Virtual attributes are merged into the current hash
// column value.
func (rec *Record) UpdateColumns(ctx context.Context, eng Engine, attrs *Map) error {
	m := rec.model
	if !rec.persisted {
		return errors.Wrapf(ErrRecordNotPersisted, "update columns of %s", m.name)
	}
	cols, virtual, err := SplitAttributes(m, attrs)
	if err != nil {
		return err
	}
	row := make(Row, len(cols)+1)
	for k, v := range cols {
		row[k] = v
	}
	var blob *Map
	if virtual.Len() > 0 {
		blob, err = rec.overlay.merged(virtual)
		if err != nil {
			return err
		}
		row[m.hashColumn] = MapValue(blob)
	}
	if len(row) == 0 {
		return nil
	}
	if err := eng.WriteRow(ctx, m, rec.ID(), row); err != nil {
		return errors.Wrapf(err, "update columns of %s %v", m.name, rec.ID())
	}
	for k, v := range cols {
		rec.columns[k] = v
	}
	if blob != nil {
		rec.overlay.reset(blob)
	}
	return nil
}
