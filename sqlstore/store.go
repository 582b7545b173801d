// Package sqlstore persists hashcol records in SQLite. The hash column is a
// TEXT column holding a JSON object, so bulk updates can merge into it with
// json_set without reading rows back.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/andreyvit/hashcol"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

var ErrTableNotFound = errors.New("table not found")

type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

var _ hashcol.Engine = (*Store)(nil)

func New(db *sql.DB, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{db: db, logger: logger}
}

func (s *Store) DB() *sql.DB { return s.db }

// CreateTable creates the table of m unless it exists. Columns are untyped,
// except for the JSON hash column.
func (s *Store) CreateTable(ctx context.Context, m *hashcol.Model) error {
	var defs []string
	for _, col := range m.Columns() {
		def := quote(col)
		if col == m.PrimaryKey() {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	defs = append(defs, quote(m.HashColumn())+" TEXT")
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(m.Table()), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrapf(err, "create table %s", m.Table())
	}
	return nil
}

func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(table)))
	if err != nil {
		return nil, errors.Wrapf(err, "table_info %s", table)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, errors.Wrapf(err, "table_info %s", table)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errors.Wrapf(ErrTableNotFound, "%s", table)
	}
	return cols, nil
}

func (s *Store) LoadRow(ctx context.Context, m *hashcol.Model, id hashcol.Value) (hashcol.Row, error) {
	cols := append(m.Columns(), m.HashColumn())
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", quoteAll(cols), quote(m.Table()), quote(m.PrimaryKey()))
	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = new(any)
	}
	err := s.db.QueryRowContext(ctx, query, driverValue(id)).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(hashcol.ErrRecordNotFound, "%s %v", m.Table(), id)
	} else if err != nil {
		return nil, errors.Wrapf(err, "load %s %v", m.Table(), id)
	}

	row := make(hashcol.Row, len(cols))
	for i, col := range cols {
		raw := *(dest[i].(*any))
		if col == m.HashColumn() {
			v, err := decodeBlob(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "%s.%s", m.Table(), col)
			}
			row[col] = v
			continue
		}
		v, err := scannedValue(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s", m.Table(), col)
		}
		row[col] = v
	}
	return row, nil
}

// WriteRow upserts the given columns; columns not in row keep their values.
func (s *Store) WriteRow(ctx context.Context, m *hashcol.Model, id hashcol.Value, row hashcol.Row) error {
	pk := m.PrimaryKey()
	cols := []string{pk}
	args := []any{driverValue(id)}
	var updates []string
	for _, col := range sortedColumns(row) {
		if col == pk {
			continue
		}
		arg, err := s.columnArg(m, col, row[col])
		if err != nil {
			return err
		}
		cols = append(cols, col)
		args = append(args, arg)
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", quote(col), quote(col)))
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(m.Table()), quoteAll(cols), placeholders(len(cols)))
	if len(updates) > 0 {
		stmt += fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET %s", quote(pk), strings.Join(updates, ", "))
	} else {
		stmt += fmt.Sprintf(" ON CONFLICT(%s) DO NOTHING", quote(pk))
	}
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrapf(err, "write %s %v", m.Table(), id)
	}
	s.logger.Debugw("row written", "table", m.Table(), "columns", len(cols))
	return nil
}

// UpdateAll merges overlayPatch into every row with json_set, one path per
// key, so keys outside the patch are kept.
func (s *Store) UpdateAll(ctx context.Context, m *hashcol.Model, cols hashcol.Row, overlayPatch *hashcol.Map) (int, error) {
	var sets []string
	var args []any
	for _, col := range sortedColumns(cols) {
		arg, err := s.columnArg(m, col, cols[col])
		if err != nil {
			return 0, err
		}
		sets = append(sets, quote(col)+" = ?")
		args = append(args, arg)
	}
	if overlayPatch.Len() > 0 {
		hc := quote(m.HashColumn())
		var expr strings.Builder
		fmt.Fprintf(&expr, "json_set(COALESCE(%s, '{}')", hc)
		for _, e := range overlayPatch.Entries() {
			raw, err := e.Value.MarshalJSON()
			if err != nil {
				return 0, err
			}
			fmt.Fprintf(&expr, ", '$.%s', json(?)", jsonPathKey(e.Key))
			args = append(args, string(raw))
		}
		expr.WriteByte(')')
		sets = append(sets, hc+" = "+expr.String())
	}
	if len(sets) == 0 {
		return 0, nil
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s", quote(m.Table()), strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, errors.Wrapf(err, "update all %s", m.Table())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	s.logger.Debugw("rows updated", "table", m.Table(), "rows", n)
	return int(n), nil
}

func (s *Store) columnArg(m *hashcol.Model, col string, v hashcol.Value) (any, error) {
	if col == m.HashColumn() {
		if v.IsNull() {
			return nil, nil
		}
		raw, err := v.MarshalJSON()
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s.%s", m.Table(), col)
		}
		return string(raw), nil
	}
	return driverValue(v), nil
}

func driverValue(v hashcol.Value) any {
	switch v.Kind() {
	case hashcol.KindNull:
		return nil
	case hashcol.KindBool:
		return v.Bool()
	case hashcol.KindNumber:
		if f := v.Float(); f == float64(int64(f)) {
			return int64(f)
		}
		return v.Float()
	case hashcol.KindText:
		return v.Str()
	case hashcol.KindTime:
		return v.Time().UTC()
	default:
		raw, _ := v.MarshalJSON()
		return string(raw)
	}
}

func scannedValue(raw any) (hashcol.Value, error) {
	switch raw := raw.(type) {
	case []byte:
		return hashcol.Text(string(raw)), nil
	case time.Time:
		return hashcol.Time(raw), nil
	default:
		return hashcol.FromAny(raw)
	}
}

func decodeBlob(raw any) (hashcol.Value, error) {
	var data []byte
	switch raw := raw.(type) {
	case nil:
		return hashcol.Null(), nil
	case string:
		data = []byte(raw)
	case []byte:
		data = raw
	default:
		return hashcol.Value{}, errors.Newf("unexpected %T in hash column", raw)
	}
	return hashcol.JSON.Decode(data)
}

func sortedColumns(row hashcol.Row) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	slices.Sort(cols)
	return cols
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quote(name)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// jsonPathKey quotes a key for a JSON path inside a single-quoted SQL literal.
func jsonPathKey(key string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(key, `"`, `\"`), `'`, `''`) + `"`
}
