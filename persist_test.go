package hashcol

import (
	"context"
	"testing"
)

// fakeEngine keeps rows in memory and records every write.
type fakeEngine struct {
	tables map[string][]string
	rows   map[string]Row
	writes []Row
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		tables: map[string][]string{"posts": {"id", "length", DefaultHashColumn}},
		rows:   make(map[string]Row),
	}
}

func (e *fakeEngine) Columns(ctx context.Context, table string) ([]string, error) {
	return e.tables[table], nil
}

func (e *fakeEngine) LoadRow(ctx context.Context, m *Model, id Value) (Row, error) {
	row := e.rows[id.String()]
	if row == nil {
		return nil, ErrRecordNotFound
	}
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v.Clone()
	}
	return out, nil
}

func (e *fakeEngine) WriteRow(ctx context.Context, m *Model, id Value, row Row) error {
	e.writes = append(e.writes, row)
	existing := e.rows[id.String()]
	if existing == nil {
		existing = make(Row)
		e.rows[id.String()] = existing
	}
	for k, v := range row {
		existing[k] = v.Clone()
	}
	return nil
}

func (e *fakeEngine) UpdateAll(ctx context.Context, m *Model, cols Row, patch *Map) (int, error) {
	for _, row := range e.rows {
		for k, v := range cols {
			row[k] = v
		}
		blob := row[m.HashColumn()].Map().Clone()
		blob.Merge(patch)
		row[m.HashColumn()] = MapValue(blob)
	}
	return len(e.rows), nil
}

func TestSave_newRecord(t *testing.T) {
	ctx := context.Background()
	eng := newFakeEngine()
	m := newPostModel(t)

	rec := must(m.New(map[string]any{"length": 3, "name": "A", "published_at": sampleTime}))
	deepEqual(t, rec.IsNewRecord(), true)
	ok(t, Save(ctx, eng, rec))

	deepEqual(t, rec.IsNewRecord(), false)
	deepEqual(t, rec.IsChanged(), false)
	if len(rec.PreviousChanges()) == 0 {
		t.Errorf("PreviousChanges is empty after save")
	}
	id := rec.ID()
	if id.Kind() != KindText || len(id.Str()) != 36 {
		t.Fatalf("ID = %v, wanted a uuid string", id)
	}

	if len(eng.writes) != 1 {
		t.Fatalf("writes = %v, wanted 1", eng.writes)
	}
	w := eng.writes[0]
	valEqual(t, w["length"], Int(3))
	stored := w[DefaultHashColumn]
	if !stored.IsMap() {
		t.Fatalf("stored %s = %v, wanted a map", DefaultHashColumn, stored)
	}
	at, _ := stored.Map().Get("published_at")
	valEqual(t, at, Text("2024-01-31T23:59:59.123Z"))

	found := must(Find(ctx, eng, m, id.Str()))
	valEqual(t, found.MustRead("published_at"), Time(sampleTime))
	valEqual(t, found.MustRead("name"), Text("A"))
	deepEqual(t, found.IsChanged(), false)
}

func TestSave_writesOnlyChangedColumns(t *testing.T) {
	ctx := context.Background()
	eng := newFakeEngine()
	m := newPostModel(t)
	rec := must(m.New(map[string]any{"id": "p1", "length": 3}))
	ok(t, Save(ctx, eng, rec))

	rec = must(Find(ctx, eng, m, "p1"))
	ok(t, rec.Write("name", "B"))
	ok(t, Save(ctx, eng, rec))
	if len(eng.writes) != 2 {
		t.Fatalf("writes = %d, wanted 2", len(eng.writes))
	}
	deepEqual(t, sortedKeysOf(eng.writes[1]), []string{DefaultHashColumn})

	// nothing to save
	ok(t, Save(ctx, eng, rec))
	deepEqual(t, len(eng.writes), 2)

	_, err := Find(ctx, eng, m, "missing")
	isErr(t, err, ErrRecordNotFound)
}

func TestSave_willChangeWritesHashColumn(t *testing.T) {
	ctx := context.Background()
	eng := newFakeEngine()
	m := newPostModel(t)
	ok(t, Save(ctx, eng, must(m.New(map[string]any{"id": "p1", "prefs": map[string]any{"a": 1}}))))

	rec := must(Find(ctx, eng, m, "p1"))
	ok(t, rec.WillChange("prefs"))
	deepEqual(t, rec.Changed(DefaultHashColumn), true)
	ok(t, Save(ctx, eng, rec))

	if len(eng.writes) != 2 {
		t.Fatalf("writes = %d, wanted 2", len(eng.writes))
	}
	last := eng.writes[1]
	deepEqual(t, sortedKeysOf(last), []string{DefaultHashColumn})
	valEqual(t, last[DefaultHashColumn], val(t, map[string]any{"prefs": map[string]any{"a": 1}}))
	deepEqual(t, rec.IsChanged(), false)
}

func TestUpdateAll_split(t *testing.T) {
	ctx := context.Background()
	eng := newFakeEngine()
	m := newPostModel(t)
	eng.rows[Int(1).String()] = Row{
		"id":              Int(1),
		"length":          Int(5),
		DefaultHashColumn: MapOf(E("extra", Text("keep")), E("name", Text("old"))),
	}

	n, err := UpdateAll(ctx, eng, m, NewMap(E("length", Int(1)), E("name", Text("X")), E("at", Time(sampleTime))))
	ok(t, err)
	deepEqual(t, n, 1)

	rec := must(Find(ctx, eng, m, 1))
	valEqual(t, rec.MustRead("length"), Int(1))
	valEqual(t, rec.MustRead("name"), Text("X"))
	valEqual(t, rec.MustRead("extra"), Text("keep"))
	valEqual(t, rec.MustRead("at"), Time(sampleTime))

	_, err = UpdateAll(ctx, eng, m, NewMap(E("a b", Int(1))))
	isErr(t, err, ErrInvalidAttributeName)
}

func TestSplitAttributes(t *testing.T) {
	m := newPostModel(t)
	cols, virtual, err := SplitAttributes(m, NewMap(
		E("length", Int(1)),
		E("name", Text("X")),
		E(DefaultHashColumn, MapOf(E("y", Int(2)))),
	))
	ok(t, err)
	deepEqual(t, len(cols), 1)
	valEqual(t, cols["length"], Int(1))
	deepEqual(t, virtual.Keys(), []string{"name", "y"})

	_, _, err = SplitAttributes(m, NewMap(E(DefaultHashColumn, Int(1))))
	isErr(t, err, ErrInvalidHashColumnValue)
}

func TestUpdateColumns(t *testing.T) {
	ctx := context.Background()
	eng := newFakeEngine()
	m := newPostModel(t)

	rec := must(m.New(map[string]any{"id": "p1"}))
	isErr(t, rec.UpdateColumns(ctx, eng, NewMap(E("name", Text("A")))), ErrRecordNotPersisted)

	ok(t, Save(ctx, eng, rec))
	ok(t, rec.Write("other", "pending"))
	ok(t, rec.UpdateColumns(ctx, eng, NewMap(E("length", Int(9)), E("name", Text("A")))))
	valEqual(t, rec.MustRead("length"), Int(9))
	valEqual(t, rec.MustRead("name"), Text("A"))
	deepEqual(t, rec.Changed("length"), false)

	last := eng.writes[len(eng.writes)-1]
	deepEqual(t, sortedKeysOf(last), []string{DefaultHashColumn, "length"})
	blob := last[DefaultHashColumn].Map()
	deepEqual(t, blob.Has("name"), true)
	// merged into the current value
	deepEqual(t, blob.Has("other"), true)
}

func TestIntrospect(t *testing.T) {
	ctx := context.Background()
	eng := newFakeEngine()

	m := must(Introspect(ctx, eng, NewSchema(), "Post", ModelOptions{Table: "posts", HashColumn: DefaultHashColumn}))
	deepEqual(t, m.Columns(), []string{"id", "length"})

	_, err := Introspect(ctx, eng, NewSchema(), "Post", ModelOptions{Table: "posts", HashColumn: "extras"})
	isErr(t, err, ErrConfiguration)
}

func sortedKeysOf(row Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	return sortedUnique(keys)
}
