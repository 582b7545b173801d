package hashcol

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Record is one row of a Model: declared column values plus the hash column.
// A Record is not safe for concurrent mutation.
type Record struct {
	model     *Model
	columns   map[string]Value
	overlay   OverlayStore
	changes   ChangeTracker
	persisted bool
}

func (rec *Record) Model() *Model { return rec.model }

// ID returns the primary key value, or null for a record without one yet.
func (rec *Record) ID() Value {
	return rec.columns[rec.model.primaryKey]
}

func (rec *Record) IsNewRecord() bool {
	return !rec.persisted
}

func (rec *Record) Read(name string) (Value, error) {
	m := rec.model
	m.metrics.attributeOp(m.name, "read")
	switch {
	case name == m.hashColumn:
		blob, err := rec.overlay.Decoded()
		if err != nil {
			return Null(), err
		}
		return MapValue(blob), nil
	case m.columnSet[name]:
		return rec.columns[name], nil
	case IsValidAttributeName(name):
		return rec.overlay.Read(name)
	default:
		return Null(), attrErrf(m, name, ErrInvalidAttributeName, "")
	}
}

// MustRead is Read for tests and call sites that have validated name already.
func (rec *Record) MustRead(name string) Value {
	return must(rec.Read(name))
}

// Write sets a declared column, a virtual attribute or, when name is the hash
// column, replaces all virtual attributes at once. v is anything FromAny
// accepts.
func (rec *Record) Write(name string, v any) error {
	val, err := FromAny(v)
	if err != nil {
		return attrErrf(rec.model, name, err, "cannot convert %T", v)
	}
	m := rec.model
	m.metrics.attributeOp(m.name, "write")
	switch {
	case name == m.hashColumn:
		if !val.IsNull() && !val.IsMap() {
			return attrErrf(m, name, ErrInvalidHashColumnValue, "got %s", val.Kind())
		}
		return rec.overlay.Replace(val.Map())
	case m.columnSet[name]:
		return rec.writeColumn(name, val)
	case IsValidAttributeName(name):
		return rec.overlay.Write(name, val)
	default:
		return attrErrf(m, name, ErrInvalidAttributeName, "")
	}
}

func (rec *Record) writeColumn(name string, v Value) error {
	before := rec.columns[name]
	if before.Equal(v) {
		return nil
	}
	if rec.model.IsReadOnly(name) {
		return attrErrf(rec.model, name, ErrReadOnlyAttribute, "")
	}
	rec.columns[name] = v
	if rec.changes.record(name, before, v) {
		rec.notify(&Change{Name: name, Before: before, After: v})
	}
	return nil
}

// Query answers "name?". A virtual attribute satisfies it when truthy or when
// merely present, so a stored false still reads as existing.
func (rec *Record) Query(name string) (bool, error) {
	v, err := rec.Read(name)
	if err != nil {
		return false, err
	}
	if rec.model.IsVirtualAttributeName(name) {
		return v.Truthy() || rec.overlay.Has(name), nil
	}
	return v.Truthy(), nil
}

// ReadBeforeTypeCast returns the raw column value for declared columns. Virtual
// attributes have no separate raw form and read the same as Read.
func (rec *Record) ReadBeforeTypeCast(name string) (Value, error) {
	if name == rec.model.hashColumn {
		return MapValue(rec.overlay.Stored()), nil
	}
	return rec.Read(name)
}

func (rec *Record) HasAttribute(name string) bool {
	return rec.overlay.Has(name) || rec.model.columnSet[name] || name == rec.model.hashColumn
}

// AttributeNames returns declared columns and virtual attribute names, sorted.
func (rec *Record) AttributeNames() []string {
	names := append(rec.model.Columns(), rec.overlay.Keys()...)
	return sortedUnique(names)
}

// Attributes returns declared columns followed by decoded virtual attributes.
// The hash column itself is not included.
func (rec *Record) Attributes() (*Map, error) {
	blob, err := rec.overlay.Decoded()
	if err != nil {
		return nil, err
	}
	out := newMapCap(len(rec.model.columns) + blob.Len())
	for _, col := range rec.model.columns {
		out.Set(col, rec.columns[col])
	}
	out.Merge(blob)
	return out, nil
}

func (rec *Record) AttributesBeforeTypeCast() (*Map, error) {
	return rec.Attributes()
}

func (rec *Record) HashColumnAttributes() (*Map, error) {
	return rec.overlay.Decoded()
}

func (rec *Record) HashColumnAttributeNames() []string {
	return rec.overlay.Keys()
}

// DeleteHashColumnAttribute removes a virtual attribute and returns its value.
// ok is false when name is absent or is not a virtual attribute name.
func (rec *Record) DeleteHashColumnAttribute(name string) (v Value, ok bool, err error) {
	m := rec.model
	if !IsValidAttributeName(name) {
		return Null(), false, attrErrf(m, name, ErrInvalidAttributeName, "")
	}
	if !m.IsVirtualAttributeName(name) {
		return Null(), false, nil
	}
	m.metrics.attributeOp(m.name, "delete")
	return rec.overlay.Delete(name)
}

// AssignAttributes is AssignMap for a plain Go map. Keys are applied in sorted
// order.
func (rec *Record) AssignAttributes(attrs map[string]any) error {
	if len(attrs) == 0 {
		return nil
	}
	v, err := FromAny(attrs)
	if err != nil {
		return err
	}
	return rec.AssignMap(v.Map())
}

// AssignMap splits attrs into declared columns and virtual attributes. Virtual
// attributes, including the entries of an explicit hash column value, are
// merged into the existing ones and written as one hash column value.
func (rec *Record) AssignMap(attrs *Map) error {
	m := rec.model
	cols, virtual, err := SplitAttributes(m, attrs)
	if err != nil {
		return err
	}
	for name := range cols {
		if m.readOnly[name] && !rec.columns[name].Equal(cols[name]) {
			return attrErrf(m, name, ErrReadOnlyAttribute, "")
		}
	}
	if virtual.Len() > 0 {
		for _, e := range virtual.Entries() {
			if !m.readOnly[e.Key] {
				continue
			}
			current, _, written, err := rec.overlay.prepare(e.Key, e.Value)
			if err != nil {
				return err
			}
			if !current.Equal(written) {
				return attrErrf(m, e.Key, ErrReadOnlyAttribute, "")
			}
		}
		if err := rec.overlay.Merge(virtual); err != nil {
			return err
		}
	}
	for _, col := range m.columns {
		if v, ok := cols[col]; ok {
			ensure(rec.writeColumn(col, v))
		}
	}
	return nil
}

// ColumnFor returns the physical column that stores name. Virtual attributes
// have no column of their own.
func (rec *Record) ColumnFor(name string) (string, bool) {
	if name == rec.model.hashColumn || rec.model.columnSet[name] {
		return name, true
	}
	return "", false
}

func (rec *Record) Changed(name string) bool {
	return rec.changes.Changed(name)
}

func (rec *Record) Change(name string) (Change, bool) {
	return rec.changes.Change(name)
}

func (rec *Record) Was(name string) (Value, error) {
	cur, err := rec.Read(name)
	if err != nil {
		return Null(), err
	}
	return rec.changes.Was(name, cur), nil
}

// WillChange marks name as changed even though no write happened, e.g. before
// mutating a nested value in place. For a virtual attribute the hash column is
// marked too, since that is what gets saved.
func (rec *Record) WillChange(name string) error {
	cur, err := rec.Read(name)
	if err != nil {
		return err
	}
	rec.changes.WillChange(name, cur)
	if rec.model.IsVirtualAttributeName(name) {
		blob, err := rec.overlay.Decoded()
		if err != nil {
			return err
		}
		rec.changes.WillChange(rec.model.hashColumn, MapValue(blob))
	}
	return nil
}

func (rec *Record) IsChanged() bool           { return rec.changes.IsChanged() }
func (rec *Record) ChangedNames() []string    { return rec.changes.ChangedNames() }
func (rec *Record) Changes() []Change         { return rec.changes.Changes() }
func (rec *Record) PreviousChanges() []Change { return rec.changes.PreviousChanges() }

func (rec *Record) notify(chg *Change) {
	if rec.model.onChange != nil {
		rec.model.onChange(rec, chg)
	}
}

// ToMap returns all attributes as plain Go values.
func (rec *Record) ToMap() (map[string]any, error) {
	attrs, err := rec.Attributes()
	if err != nil {
		return nil, err
	}
	return attrs.Any(), nil
}

// Inspect formats the record like "#<Post id: 1, name: "x">".
func (rec *Record) Inspect() string {
	var buf strings.Builder
	buf.WriteString("#<")
	buf.WriteString(rec.model.name)
	attrs, err := rec.Attributes()
	if err != nil {
		fmt.Fprintf(&buf, " error: %v>", err)
		return buf.String()
	}
	for i, e := range attrs.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte(' ')
		buf.WriteString(e.Key)
		buf.WriteString(": ")
		e.Value.inspect(&buf)
	}
	buf.WriteByte('>')
	return buf.String()
}

// CacheKey returns "<model-name>-<id>-version-<digest>", where the digest
// covers every attribute, so any change to a virtual attribute changes the key.
func (rec *Record) CacheKey() string {
	id := rec.ID()
	var idStr string
	if id.Kind() == KindText {
		idStr = id.Str()
	} else if !id.IsNull() {
		idStr = id.String()
	}
	digest := xxhash.Sum64String(rec.Inspect())
	return fmt.Sprintf("%s-%s-version-%016x", dasherize(rec.model.name), idStr, digest)
}

func (rec *Record) String() string {
	return rec.Inspect()
}
