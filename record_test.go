package hashcol

import (
	"regexp"
	"testing"
	"time"
)

func TestRecord_readWrite(t *testing.T) {
	m := newPostModel(t)
	rec := loadPost(t, m, map[string]any{"name": "Jacob", "at": "2024-01-31T23:59:59.123Z"})

	valEqual(t, rec.MustRead("id"), Int(1))
	valEqual(t, rec.MustRead("name"), Text("Jacob"))
	valEqual(t, rec.MustRead("at"), Time(sampleTime))
	deepEqual(t, rec.MustRead("missing").IsNull(), true)

	hc := rec.MustRead(DefaultHashColumn)
	if !hc.IsMap() {
		t.Fatalf("%s = %v, wanted a map", DefaultHashColumn, hc)
	}
	deepEqual(t, hc.Map().Keys(), []string{"at", "name"})

	_, err := rec.Read("#")
	isErr(t, err, ErrInvalidAttributeName)

	ok(t, rec.Write("tags", []string{"a", "b"}))
	valEqual(t, rec.MustRead("tags"), List(Text("a"), Text("b")))
	ok(t, rec.Write("length", 7))
	valEqual(t, rec.MustRead("length"), Int(7))
}

func TestRecord_storedFormIsEncoded(t *testing.T) {
	m := newPostModel(t)
	rec := must(m.New(nil))
	ok(t, rec.Write("published_at", sampleTime))

	stored := must(rec.ReadBeforeTypeCast(DefaultHashColumn))
	v, _ := stored.Map().Get("published_at")
	valEqual(t, v, Text("2024-01-31T23:59:59.123Z"))

	valEqual(t, must(rec.ReadBeforeTypeCast("published_at")), Time(sampleTime))
}

func TestRecord_dirtyTracking(t *testing.T) {
	m := newPostModel(t)
	rec := loadPost(t, m, map[string]any{"name": "A", "n": 1})

	ok(t, rec.Write("name", "A"))
	ok(t, rec.Write("n", 1.0))
	deepEqual(t, rec.Changed(DefaultHashColumn), false)
	deepEqual(t, rec.IsChanged(), false)

	ok(t, rec.Write("name", "B"))
	chg, found := rec.Change(DefaultHashColumn)
	if !found {
		t.Fatalf("Change(%s) not found", DefaultHashColumn)
	}
	valEqual(t, chg.Before, val(t, map[string]any{"name": "A", "n": 1}))
	valEqual(t, chg.After, val(t, map[string]any{"name": "B", "n": 1}))
	deepEqual(t, rec.Changed("name"), true)
	deepEqual(t, rec.ChangedNames(), []string{DefaultHashColumn, "name"})

	ok(t, rec.Write("name", "C"))
	chg, _ = rec.Change(DefaultHashColumn)
	valEqual(t, chg.Before, val(t, map[string]any{"name": "A", "n": 1}))
	valEqual(t, must(rec.Was("name")), Text("A"))

	ok(t, rec.Write("name", "A"))
	if rec.IsChanged() {
		t.Errorf("IsChanged after revert, changed = %v", rec.ChangedNames())
	}
}

func TestRecord_dirtyTrackingDecodedEquality(t *testing.T) {
	m := newPostModel(t)
	rec := loadPost(t, m, map[string]any{"at": "2024-01-31T23:59:59.123Z"})

	ok(t, rec.Write("at", sampleTime))
	deepEqual(t, rec.IsChanged(), false)
}

func TestRecord_nullToAbsentIsNoop(t *testing.T) {
	m := newPostModel(t)
	rec := loadPost(t, m, map[string]any{"name": "A"})

	ok(t, rec.Write("nickname", nil))
	deepEqual(t, rec.HasAttribute("nickname"), false)
	deepEqual(t, rec.HashColumnAttributeNames(), []string{"name"})
	deepEqual(t, rec.IsChanged(), false)

	ok(t, rec.AssignAttributes(map[string]any{"nickname": nil}))
	deepEqual(t, rec.HasAttribute("nickname"), false)
	deepEqual(t, rec.IsChanged(), false)

	ok(t, rec.Write("name", nil))
	deepEqual(t, rec.HasAttribute("name"), true)
	deepEqual(t, rec.MustRead("name").IsNull(), true)
	deepEqual(t, rec.Changed(DefaultHashColumn), true)
}

func TestRecord_replaceHashColumn(t *testing.T) {
	m := newPostModel(t)
	rec := loadPost(t, m, map[string]any{"name": "A", "n": 1})

	ok(t, rec.Write(DefaultHashColumn, map[string]any{"n": 1, "name": "A"}))
	deepEqual(t, rec.IsChanged(), false)

	ok(t, rec.Write(DefaultHashColumn, map[string]any{"x": true}))
	deepEqual(t, rec.Changed(DefaultHashColumn), true)
	deepEqual(t, rec.HashColumnAttributeNames(), []string{"x"})

	isErr(t, rec.Write(DefaultHashColumn, "nope"), ErrInvalidHashColumnValue)
}

func TestRecord_replaceHashColumnRejectsNonVirtualKeys(t *testing.T) {
	m := newPostModel(t)
	rec := loadPost(t, m, map[string]any{"name": "A"})

	for _, bad := range []map[string]any{
		{"length": 9},
		{"bad name": 1},
		{"name": "B", "name_was": "x"},
		{DefaultHashColumn: map[string]any{}},
	} {
		isErr(t, rec.Write(DefaultHashColumn, bad), ErrInvalidAttributeName)
	}
	deepEqual(t, rec.HashColumnAttributeNames(), []string{"name"})
	valEqual(t, rec.MustRead("length"), Int(5))
	deepEqual(t, rec.IsChanged(), false)
}

func TestRecord_attributeNames(t *testing.T) {
	m := newPostModel(t)
	rec := loadPost(t, m, map[string]any{"name": "Jacob", "lucky_number": 7})

	deepEqual(t, rec.AttributeNames(), []string{"id", "length", "lucky_number", "name"})
	deepEqual(t, rec.HashColumnAttributeNames(), []string{"lucky_number", "name"})
	deepEqual(t, rec.HasAttribute("name"), true)
	deepEqual(t, rec.HasAttribute("length"), true)
	deepEqual(t, rec.HasAttribute("age"), false)

	attrs := must(rec.Attributes())
	deepEqual(t, attrs.Keys(), []string{"id", "length", "lucky_number", "name"})

	_, found := rec.ColumnFor("name")
	deepEqual(t, found, false)
	col, found := rec.ColumnFor("length")
	deepEqual(t, found, true)
	deepEqual(t, col, "length")
}

func TestRecord_mergeAssign(t *testing.T) {
	m := newPostModel(t)
	rec := must(m.New(map[string]any{"name": "A"}))
	ok(t, rec.AssignAttributes(map[string]any{"lucky_number": 1}))

	attrs := must(rec.HashColumnAttributes())
	valEqual(t, MapValue(attrs), val(t, map[string]any{"name": "A", "lucky_number": 1}))
}

func TestRecord_assignSplitsColumns(t *testing.T) {
	m := newPostModel(t)
	rec := must(m.New(map[string]any{
		"length":          3,
		"name":            "A",
		DefaultHashColumn: map[string]any{"x": 1},
	}))
	valEqual(t, rec.MustRead("length"), Int(3))
	deepEqual(t, rec.HashColumnAttributeNames(), []string{"name", "x"})

	_, err := m.New(map[string]any{"bad name": 1})
	isErr(t, err, ErrInvalidAttributeName)
}

func TestRecord_query(t *testing.T) {
	m := newPostModel(t)
	rec := loadPost(t, m, map[string]any{"flag": false, "name": "x", "blank": ""})

	for name, want := range map[string]bool{
		"flag":    true,
		"name":    true,
		"blank":   true,
		"missing": false,
		"length":  true,
	} {
		if got := must(rec.Query(name)); got != want {
			t.Errorf("Query(%q) = %v, wanted %v", name, got, want)
		}
	}
}

func TestRecord_delete(t *testing.T) {
	m := newPostModel(t)
	rec := loadPost(t, m, map[string]any{"name": "Jacob"})

	v, found, err := rec.DeleteHashColumnAttribute("name")
	ok(t, err)
	deepEqual(t, found, true)
	valEqual(t, v, Text("Jacob"))
	isempty(t, rec.HashColumnAttributeNames())
	deepEqual(t, rec.Changed(DefaultHashColumn), true)

	v, found, err = rec.DeleteHashColumnAttribute("name")
	ok(t, err)
	deepEqual(t, found, false)
	deepEqual(t, v.IsNull(), true)

	_, found, err = rec.DeleteHashColumnAttribute("length")
	ok(t, err)
	deepEqual(t, found, false)
	valEqual(t, rec.MustRead("length"), Int(5))

	_, _, err = rec.DeleteHashColumnAttribute("#")
	isErr(t, err, ErrInvalidAttributeName)
}

func TestRecord_readOnly(t *testing.T) {
	m := newPostModel(t, func(opt *ModelOptions) {
		opt.ReadOnly = []string{"slug"}
	})
	rec := loadPost(t, m, map[string]any{"slug": "hello"})

	ok(t, rec.Write("slug", "hello"))
	isErr(t, rec.Write("slug", "other"), ErrReadOnlyAttribute)
	valEqual(t, rec.MustRead("slug"), Text("hello"))
	deepEqual(t, rec.IsChanged(), false)

	isErr(t, rec.AssignAttributes(map[string]any{"slug": "x", "name": "y"}), ErrReadOnlyAttribute)
	deepEqual(t, rec.HashColumnAttributeNames(), []string{"slug"})

	_, _, err := rec.DeleteHashColumnAttribute("slug")
	isErr(t, err, ErrReadOnlyAttribute)
}

func TestRecord_readOnlyComparesStoredForm(t *testing.T) {
	m := newPostModel(t, func(opt *ModelOptions) {
		opt.ReadOnly = []string{"at"}
	})
	rec := loadPost(t, m, map[string]any{"at": "2024-01-31T23:59:59.123Z"})
	finer := sampleTime.Add(456789 * time.Nanosecond)

	ok(t, rec.Write("at", finer))
	ok(t, rec.AssignAttributes(map[string]any{"at": finer}))
	ok(t, rec.AssignAttributes(map[string]any{"at": finer, "name": "y"}))
	valEqual(t, rec.MustRead("at"), Time(sampleTime))
	deepEqual(t, rec.HashColumnAttributeNames(), []string{"at", "name"})

	isErr(t, rec.AssignAttributes(map[string]any{"at": sampleTime.Add(time.Second)}), ErrReadOnlyAttribute)
}

func TestRecord_onChange(t *testing.T) {
	m := newPostModel(t)
	var got []string
	m.OnChange(func(rec *Record, chg *Change) {
		got = append(got, chg.Name)
	})
	rec := loadPost(t, m, nil)
	ok(t, rec.Write("name", "A"))
	ok(t, rec.Write("name", "A"))
	ok(t, rec.Write("length", 6))
	deepEqual(t, got, []string{DefaultHashColumn, "name", "length"})
}

func TestRecord_inspectAndCacheKey(t *testing.T) {
	m := newPostModel(t, func(opt *ModelOptions) {
		opt.Columns = []string{"id"}
	})
	m2 := must(AddModel(NewSchema(), "BlogPost", ModelOptions{HashColumn: "extras", Columns: []string{"id"}}))

	rec := must(m.Instantiate(Row{"id": Text("p1"), DefaultHashColumn: val(t, map[string]any{"name": "x"})}))
	deepEqual(t, rec.Inspect(), `#<Post id: "p1", name: "x">`)

	key := rec.CacheKey()
	if !regexp.MustCompile(`^post-p1-version-[0-9a-f]{16}$`).MatchString(key) {
		t.Errorf("CacheKey = %q, wanted post-p1-version-<hex>", key)
	}
	ok(t, rec.Write("name", "y"))
	if rec.CacheKey() == key {
		t.Errorf("CacheKey unchanged after write: %q", key)
	}

	rec2 := must(m2.Instantiate(Row{"id": Int(3)}))
	if key2 := rec2.CacheKey(); !regexp.MustCompile(`^blog-post-3-version-`).MatchString(key2) {
		t.Errorf("CacheKey = %q, wanted blog-post-3-version-...", key2)
	}

	deepEqual(t, must(rec.ToMap()), map[string]any{"id": "p1", "name": "y"})
}

func TestModel_configurationErrors(t *testing.T) {
	_, err := AddModel(NewSchema(), "Post", ModelOptions{Columns: []string{"id"}})
	isErr(t, err, ErrConfiguration)

	// missing primary key column
	_, err = AddModel(NewSchema(), "Post", ModelOptions{HashColumn: "h", Columns: []string{"name"}})
	isErr(t, err, ErrConfiguration)

	scm := NewSchema()
	m := must(AddModel(scm, "Post", ModelOptions{HashColumn: "h", Columns: []string{"id", "h"}}))
	deepEqual(t, m.Columns(), []string{"id"})
	if scm.ModelNamed("post") != m {
		t.Errorf("ModelNamed(post) = %v, wanted %v", scm.ModelNamed("post"), m)
	}

	_, err = AddModel(scm, "POST", ModelOptions{HashColumn: "h", Columns: []string{"id"}})
	isErr(t, err, ErrConfiguration)

	isErr(t, m.SetHashColumn(""), ErrConfiguration)
	isErr(t, m.SetHashColumn("id"), ErrConfiguration)
	ok(t, m.SetHashColumn("extras"))
	deepEqual(t, m.HashColumn(), "extras")
}
