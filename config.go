package hashcol

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config describes a set of models, e.g.
//
//	[models.Post]
//	table = "posts"
//	hash_column = "__hash_column"
//	columns = ["id", "length"]
//	read_only = ["slug"]
//	codecs = ["datetime"]
type Config struct {
	Encoding string                  `toml:"encoding" yaml:"encoding"`
	Models   map[string]*ModelConfig `toml:"models" yaml:"models"`
}

type ModelConfig struct {
	Table      string   `toml:"table" yaml:"table"`
	HashColumn string   `toml:"hash_column" yaml:"hash_column"`
	Columns    []string `toml:"columns" yaml:"columns"`
	PrimaryKey string   `toml:"primary_key" yaml:"primary_key"`
	ReadOnly   []string `toml:"read_only" yaml:"read_only"`

	// Codecs are listed highest precedence first. When omitted, the model gets
	// DefaultRegistry.
	Codecs []string `toml:"codecs" yaml:"codecs"`
}

// CodecFactories resolves codec names used in configs.
var CodecFactories = map[string]func() Codec{
	"datetime": func() Codec { return DateTimeCodec{} },
}

// LoadConfig reads a TOML config, or YAML when the file extension says so.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	format := "toml"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	cfg, err := ParseConfig(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func ParseConfig(data []byte, format string) (*Config, error) {
	cfg := new(Config)
	switch format {
	case "toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse toml")
		}
	case "yaml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse yaml")
		}
	default:
		return nil, configErrf("", "unknown config format %q", format)
	}
	return cfg, nil
}

func (cfg *Config) ModelNames() []string {
	names := make([]string, 0, len(cfg.Models))
	for name := range cfg.Models {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// BuildSchema validates the config and defines its models. Each model's
// registry is frozen, since configuration is over once the schema exists.
func (cfg *Config) BuildSchema(logger *zap.SugaredLogger, metrics *Metrics) (*Schema, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Encoding != "" {
		if _, err := ParseEncoding(cfg.Encoding); err != nil {
			return nil, err
		}
	}
	scm := NewSchema()
	for _, name := range cfg.ModelNames() {
		mc := cfg.Models[name]
		if mc == nil {
			return nil, configErrf(name, "empty model section")
		}
		reg, err := mc.registry(name)
		if err != nil {
			return nil, err
		}
		reg.SetLogger(logger)
		reg.Instrument(metrics)
		reg.Freeze()

		_, err = AddModel(scm, name, ModelOptions{
			Table:      mc.Table,
			HashColumn: mc.HashColumn,
			Columns:    mc.Columns,
			PrimaryKey: mc.PrimaryKey,
			ReadOnly:   mc.ReadOnly,
			Registry:   reg,
			Logger:     logger,
			Metrics:    metrics,
		})
		if err != nil {
			return nil, err
		}
	}
	return scm, nil
}

func (mc *ModelConfig) registry(model string) (*Registry, error) {
	if mc.Codecs == nil {
		return DefaultRegistry(), nil
	}
	reg := NewRegistry()
	for _, name := range slices.Backward(mc.Codecs) {
		factory := CodecFactories[name]
		if factory == nil {
			return nil, configErrf(model, "unknown codec %q", name)
		}
		if err := reg.Register(factory()); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
