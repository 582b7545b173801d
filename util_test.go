package hashcol

import (
	"slices"
	"testing"
)

func TestDasherize(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"Post", "post"},
		{"BlogPost", "blog-post"},
		{"blog_post", "blog-post"},
		{"HTTPLog", "httplog"},
		{"Post2Draft", "post2-draft"},
	} {
		if got := dasherize(tc.in); got != tc.want {
			t.Fatalf("dasherize(%q) = %q, wanted %q", tc.in, got, tc.want)
		}
	}
}

func TestSortedUnique(t *testing.T) {
	got := sortedUnique([]string{"b", "a", "b", "c", "a"})
	if want := []string{"a", "b", "c"}; !slices.Equal(got, want) {
		t.Fatalf("sortedUnique = %v, wanted %v", got, want)
	}
	if got := sortedUnique(nil); len(got) != 0 {
		t.Fatalf("sortedUnique(nil) = %v, wanted empty", got)
	}
}

func TestMustPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("must did not panic")
		}
	}()
	must(0, ErrConfiguration)
}
