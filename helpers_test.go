package hashcol

import (
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
)

func newPostModel(t testing.TB, opts ...func(opt *ModelOptions)) *Model {
	t.Helper()
	opt := ModelOptions{
		Table:      "posts",
		HashColumn: DefaultHashColumn,
		Columns:    []string{"id", "length"},
	}
	for _, f := range opts {
		f(&opt)
	}
	return must(AddModel(NewSchema(), "Post", opt))
}

func val(t testing.TB, x any) Value {
	t.Helper()
	v, err := FromAny(x)
	ok(t, err)
	return v
}

// loadPost builds a persisted Post with the given stored hash column.
func loadPost(t testing.TB, m *Model, blob map[string]any) *Record {
	t.Helper()
	return must(m.Instantiate(Row{
		"id":           Int(1),
		"length":       Int(5),
		m.HashColumn(): val(t, blob),
	}))
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func valEqual(t testing.TB, a, e Value) {
	if !a.Equal(e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isempty[T any, S ~[]T](t testing.TB, a S) {
	if len(a) > 0 {
		t.Helper()
		t.Errorf("** got %v, wanted empty slice", a)
	}
}

func ok(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatalf("** unexpected error: %v", err)
	}
}

func isErr(t testing.TB, err, target error) {
	if !errors.Is(err, target) {
		t.Helper()
		t.Errorf("** got error %v, wanted %v", err, target)
	}
}
