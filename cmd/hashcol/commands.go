package main

import (
	"context"
	"fmt"
	"os"

	"github.com/andreyvit/hashcol"
	"github.com/andreyvit/hashcol/boltstore"
	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <id> <attr>",
	Short: "Print an attribute as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: withEnv(func(ctx context.Context, e *env, args []string) error {
		rec, err := hashcol.Find(ctx, e.engine, e.model, parseID(args[0]))
		if err != nil {
			return err
		}
		v, err := rec.Call(args[1])
		if err != nil {
			return err
		}
		return printJSON(v)
	}),
}

var setCmd = &cobra.Command{
	Use:   "set <id> <attr> <json>",
	Short: "Write an attribute and save the record",
	Long:  "Write an attribute and save the record. The record is created when missing.",
	Args:  cobra.ExactArgs(3),
	RunE: withEnv(func(ctx context.Context, e *env, args []string) error {
		v, err := hashcol.ParseJSON([]byte(args[2]))
		if err != nil {
			return errors.Wrap(err, "value")
		}
		rec, err := hashcol.Find(ctx, e.engine, e.model, parseID(args[0]))
		if errors.Is(err, hashcol.ErrRecordNotFound) {
			rec, err = e.model.New(map[string]any{e.model.PrimaryKey(): parseID(args[0])})
		}
		if err != nil {
			return err
		}
		if _, err := rec.Call(args[1]+"=", v); err != nil {
			return err
		}
		if !rec.IsChanged() {
			pterm.Info.Println("unchanged")
			return nil
		}
		if err := hashcol.Save(ctx, e.engine, rec); err != nil {
			return err
		}
		pterm.Success.Printfln("saved %s", rec.CacheKey())
		return nil
	}),
}

var delCmd = &cobra.Command{
	Use:   "del <id> <attr>",
	Short: "Delete a virtual attribute and save the record",
	Args:  cobra.ExactArgs(2),
	RunE: withEnv(func(ctx context.Context, e *env, args []string) error {
		rec, err := hashcol.Find(ctx, e.engine, e.model, parseID(args[0]))
		if err != nil {
			return err
		}
		prev, ok, err := rec.DeleteHashColumnAttribute(args[1])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("(absent)")
			return nil
		}
		if err := hashcol.Save(ctx, e.engine, rec); err != nil {
			return err
		}
		return printJSON(prev)
	}),
}

var keysCmd = &cobra.Command{
	Use:   "keys <id>",
	Short: "List attribute names",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(ctx context.Context, e *env, args []string) error {
		rec, err := hashcol.Find(ctx, e.engine, e.model, parseID(args[0]))
		if err != nil {
			return err
		}
		for _, name := range rec.AttributeNames() {
			fmt.Println(name)
		}
		return nil
	}),
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show all attributes of a record",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(ctx context.Context, e *env, args []string) error {
		rec, err := hashcol.Find(ctx, e.engine, e.model, parseID(args[0]))
		if err != nil {
			return err
		}
		attrs, err := rec.Attributes()
		if err != nil {
			return err
		}
		data := pterm.TableData{{"Attribute", "Storage", "Value"}}
		for _, entry := range attrs.Entries() {
			storage := "column"
			if _, ok := rec.ColumnFor(entry.Key); !ok {
				storage = e.model.HashColumn()
			}
			data = append(data, []string{entry.Key, storage, entry.Value.String()})
		}
		pterm.DefaultSection.Println(rec.Inspect())
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}),
}

var updateAllCmd = &cobra.Command{
	Use:   "update-all <json-object>",
	Short: "Set attributes on every record of the model",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(ctx context.Context, e *env, args []string) error {
		v, err := hashcol.ParseJSON([]byte(args[0]))
		if err != nil {
			return errors.Wrap(err, "attributes")
		}
		if !v.IsMap() {
			return errors.Newf("attributes must be a JSON object, got %s", v.Kind())
		}
		n, err := hashcol.UpdateAll(ctx, e.engine, e.model, v.Map())
		if err != nil {
			return err
		}
		pterm.Success.Printfln("updated %d rows", n)
		return nil
	}),
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump all rows of a bolt database",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(ctx context.Context, e *env, args []string) error {
		if e.bolt == nil {
			return errors.New("dump is only supported by the bolt engine")
		}
		return e.bolt.Dump(ctx, os.Stdout, boltstore.DumpAll)
	}),
}

func printJSON(v hashcol.Value) error {
	raw, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
