package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/andreyvit/hashcol"
	"github.com/andreyvit/hashcol/boltstore"
	"github.com/andreyvit/hashcol/sqlstore"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "hashcol",
	Short: "Inspect and edit virtual attributes stored in a hash column",
	Long: `hashcol reads and writes virtual attributes of stored records.

Models are described by a TOML or YAML config:

  [models.Post]
  table = "posts"
  hash_column = "__hash_column"
  columns = ["id", "length"]

Examples:
  hashcol --db posts.db --config hashcol.toml --model Post keys 1
  hashcol --model Post set 1 tags '["a","b"]'
  hashcol --model Post update-all '{"length": 1, "name": "X"}'`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger(viper.GetBool("verbose"))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

var logger = zap.NewNop().Sugar()

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("db", "hashcol.db", "database file")
	flags.String("engine", "bolt", "storage engine: bolt or sqlite")
	flags.String("config", "hashcol.toml", "model config (.toml, .yaml)")
	flags.String("model", "", "model name")
	flags.BoolP("verbose", "v", false, "log debug output")
	for _, name := range []string{"db", "engine", "config", "model", "verbose"} {
		ensure(viper.BindPFlag(name, flags.Lookup(name)))
	}
	viper.SetEnvPrefix("HASHCOL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(getCmd, setCmd, delCmd, keysCmd, showCmd, updateAllCmd, dumpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLogger(verbose bool) error {
	var l *zap.Logger
	var err error
	if verbose {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		l, err = cfg.Build()
	}
	if err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	logger = l.Sugar()
	return nil
}

// env is what every command needs: the schema, the selected model and an
// engine to talk to.
type env struct {
	schema *hashcol.Schema
	model  *hashcol.Model
	engine hashcol.Engine
	bolt   *boltstore.Store
	close  func() error
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := hashcol.LoadConfig(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	scm, err := cfg.BuildSchema(logger, nil)
	if err != nil {
		return nil, err
	}
	name := viper.GetString("model")
	if name == "" {
		names := cfg.ModelNames()
		if len(names) != 1 {
			return nil, errors.Newf("--model is required, config defines %s", strings.Join(names, ", "))
		}
		name = names[0]
	}
	m := scm.ModelNamed(name)
	if m == nil {
		return nil, errors.Newf("unknown model %q", name)
	}

	e := &env{schema: scm, model: m}
	path := viper.GetString("db")
	switch viper.GetString("engine") {
	case "bolt":
		enc, err := hashcol.ParseEncoding(cfg.Encoding)
		if err != nil {
			return nil, err
		}
		st, err := boltstore.Open(path, scm, boltstore.Options{Logger: logger, Encoding: enc})
		if err != nil {
			return nil, err
		}
		e.engine, e.bolt, e.close = st, st, st.Close
	case "sqlite":
		db, err := sqlstore.Open(path, logger)
		if err != nil {
			return nil, err
		}
		st := sqlstore.New(db, logger)
		for _, m := range scm.Models() {
			if err := st.CreateTable(ctx, m); err != nil {
				db.Close()
				return nil, err
			}
		}
		e.engine, e.close = st, db.Close
	default:
		return nil, errors.Newf("unknown engine %q", viper.GetString("engine"))
	}
	return e, nil
}

func withEnv(f func(ctx context.Context, e *env, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.close()
		return f(ctx, e, args)
	}
}

// parseID treats an all-digit id as a number, so integer primary keys can be
// addressed. Anything else is text.
func parseID(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return n
	}
	return s
}

func ensure(err error) {
	if err != nil {
		panic(fmt.Errorf("hashcol: %w", err))
	}
}
