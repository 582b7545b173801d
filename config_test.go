package hashcol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

const sampleTOML = `
encoding = "json"

[models.Post]
table = "posts"
hash_column = "__hash_column"
columns = ["id", "length"]
read_only = ["slug"]

[models.Comment]
hash_column = "extras"
columns = ["id"]
codecs = []
`

const sampleYAML = `
models:
  Post:
    table: posts
    hash_column: __hash_column
    columns: [id, length]
    codecs: [upcase, datetime]
`

func TestLoadConfig_toml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.toml")
	ok(t, os.WriteFile(path, []byte(sampleTOML), 0o644))

	cfg := must(LoadConfig(path))
	deepEqual(t, cfg.Encoding, "json")
	deepEqual(t, cfg.ModelNames(), []string{"Comment", "Post"})
	deepEqual(t, cfg.Models["Post"].ReadOnly, []string{"slug"})

	scm := must(cfg.BuildSchema(nil, nil))
	post := scm.ModelNamed("post")
	if post == nil {
		t.Fatalf("ModelNamed(post) = nil")
	}
	deepEqual(t, post.Table(), "posts")
	deepEqual(t, post.IsReadOnly("slug"), true)
	deepEqual(t, codecNames(post.Registry()), []string{"datetime"})
	deepEqual(t, post.Registry().Frozen(), true)

	comment := scm.ModelNamed("Comment")
	deepEqual(t, comment.Table(), "Comment")
	deepEqual(t, comment.HashColumn(), "extras")
	isempty(t, comment.Registry().Codecs())
}

func TestLoadConfig_yaml(t *testing.T) {
	CodecFactories["upcase"] = func() Codec { return upcaseCodec{"A:"} }
	t.Cleanup(func() { delete(CodecFactories, "upcase") })

	path := filepath.Join(t.TempDir(), "models.yml")
	ok(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg := must(LoadConfig(path))
	scm := must(cfg.BuildSchema(nil, nil))

	reg := scm.ModelNamed("Post").Registry()
	deepEqual(t, codecNames(reg), []string{"upcaseA:", "datetime"})
	isErr(t, reg.Register(DateTimeCodec{}), ErrConfiguration)
}

func TestBuildSchema_errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  string
	}{
		{"unknown codec", "[models.Post]\nhash_column = \"h\"\ncodecs = [\"nope\"]\n"},
		{"unknown encoding", "encoding = \"xml\"\n[models.Post]\nhash_column = \"h\"\n"},
		{"missing hash column", "[models.Post]\ncolumns = [\"id\"]\n"},
		{"primary key is the hash column", "[models.Post]\nhash_column = \"id\"\ncolumns = [\"id\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := must(ParseConfig([]byte(tt.cfg), "toml"))
			_, err := cfg.BuildSchema(nil, nil)
			isErr(t, err, ErrConfiguration)
		})
	}

	_, err := ParseConfig([]byte("x"), "ini")
	isErr(t, err, ErrConfiguration)
	if _, err := ParseConfig([]byte("= broken"), "toml"); err == nil {
		t.Errorf("ParseConfig(broken toml) err = nil, wanted error")
	}
}

func TestBuildSchema_instrumented(t *testing.T) {
	cfg := must(ParseConfig([]byte(sampleTOML), "toml"))
	metrics := NewMetrics(prometheus.NewRegistry())
	scm := must(cfg.BuildSchema(nil, metrics))

	must(scm.ModelNamed("Post").New(map[string]any{"at": sampleTime}))
	if n := testutilCount(metrics.CodecApplications, "datetime", "dump"); n <= 0 {
		t.Errorf("datetime dumps = %v, wanted > 0", n)
	}
}

func codecNames(reg *Registry) []string {
	var names []string
	for _, c := range reg.Codecs() {
		names = append(names, c.Name())
	}
	return names
}
