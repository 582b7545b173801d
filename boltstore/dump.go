package boltstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/andreyvit/hashcol"
)

type DumpFlags uint64

const (
	DumpTableHeaders = DumpFlags(1 << iota)
	DumpRows
	DumpStats

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var dumpSep = strings.Repeat("=", 80)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump writes every table of the schema to w, one JSON row per line.
func (s *Store) Dump(ctx context.Context, w io.Writer, f DumpFlags) error {
	return s.Read(func(tx *Tx) error {
		for _, m := range s.schema.Models() {
			ts, err := s.tableState(m)
			if err != nil {
				return err
			}
			if err := tx.dumpTable(ctx, w, f, ts); err != nil {
				return err
			}
		}
		return nil
	})
}

func (tx *Tx) dumpTable(ctx context.Context, w io.Writer, f DumpFlags, ts *tableState) error {
	var rows int
	if b := tx.stx.Bucket(ts.name); b != nil {
		rows = b.KeyCount()
	}
	if f.Contains(DumpTableHeaders) {
		fmt.Fprintln(w, dumpSep)
		fmt.Fprintf(w, "%s (%d rows)\n", ts.name, rows)
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: columns = %s, hash_column = %s, encoding = %s, last_seen = %s\n", ts.name, strings.Join(ts.Columns, ","), ts.HashColumn, ts.enc, ts.LastSeen.UTC().Format(hashcol.DateTimeLayout))
	}
	if !f.Contains(DumpRows) {
		return nil
	}
	var pos int
	return tx.each(ctx, ts, func(_ []byte, row hashcol.Row) error {
		pos++
		m := hashcol.NewMap()
		for _, col := range ts.allColumns() {
			if v, ok := row[col]; ok {
				m.Set(col, v)
			}
		}
		raw, err := hashcol.MapValue(m).MarshalJSON()
		if err != nil {
			fmt.Fprintf(w, "%s.%d = ** ERROR: %v\n", ts.name, pos, err)
			return nil
		}
		fmt.Fprintf(w, "%s.%d = %s\n", ts.name, pos, raw)
		return nil
	})
}
