package hashcol

import (
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	// DefaultHashColumn is the conventional hash column name. Models still
	// have to name their column explicitly.
	DefaultHashColumn = "__hash_column"
	DefaultPrimaryKey = "id"
)

type Schema struct {
	models            []*Model
	modelsByLowerName map[string]*Model
}

func NewSchema() *Schema {
	return &Schema{
		modelsByLowerName: make(map[string]*Model),
	}
}

func (scm *Schema) Models() []*Model {
	return slices.Clone(scm.models)
}

func (scm *Schema) ModelNamed(name string) *Model {
	return scm.modelsByLowerName[strings.ToLower(name)]
}

type ModelOptions struct {
	// Table defaults to the model name.
	Table      string
	HashColumn string
	Columns    []string
	PrimaryKey string
	ReadOnly   []string
	Registry   *Registry
	Logger     *zap.SugaredLogger
	Metrics    *Metrics
}

// Accessor is a host-defined binding for a virtual attribute. Either function
// may be nil, in which case that direction is routed as usual.
type Accessor struct {
	Get func(rec *Record) (Value, error)
	Set func(rec *Record, v Value) error
}

type binding struct {
	base string
	mode Mode
}

// Model is the per-record-type configuration: which columns are declared, where
// virtual attributes live and how they are converted.
type Model struct {
	schema     *Schema
	name       string
	table      string
	hashColumn string
	columns    []string
	columnSet  map[string]bool
	primaryKey string
	readOnly   map[string]bool
	registry   *Registry
	logger     *zap.SugaredLogger
	metrics    *Metrics
	onChange   func(rec *Record, chg *Change)

	bindingsLock sync.RWMutex
	accessors    map[string]*Accessor
	bindings     map[string]binding
}

func AddModel(scm *Schema, name string, opt ModelOptions) (*Model, error) {
	if name == "" {
		return nil, configErrf("", "model name must be present")
	}
	if scm.modelsByLowerName[strings.ToLower(name)] != nil {
		return nil, configErrf(name, "model already defined")
	}
	if opt.HashColumn == "" {
		return nil, configErrf(name, "hash column name must be present")
	}
	if opt.Table == "" {
		opt.Table = name
	}
	if opt.PrimaryKey == "" {
		opt.PrimaryKey = DefaultPrimaryKey
	}
	if opt.Registry == nil {
		opt.Registry = DefaultRegistry()
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop().Sugar()
	}
	if opt.Metrics != nil {
		opt.Registry.Instrument(opt.Metrics)
	}

	m := &Model{
		schema:     scm,
		name:       name,
		table:      opt.Table,
		hashColumn: opt.HashColumn,
		columnSet:  make(map[string]bool),
		primaryKey: opt.PrimaryKey,
		readOnly:   make(map[string]bool),
		registry:   opt.Registry,
		logger:     opt.Logger.With("model", name),
		metrics:    opt.Metrics,
		accessors:  make(map[string]*Accessor),
		bindings:   make(map[string]binding),
	}
	for _, col := range opt.Columns {
		if col == opt.HashColumn {
			continue
		}
		if col == "" || m.columnSet[col] {
			return nil, configErrf(name, "invalid or duplicate column %q", col)
		}
		m.columns = append(m.columns, col)
		m.columnSet[col] = true
	}
	if !m.columnSet[m.primaryKey] {
		return nil, configErrf(name, "primary key %q is not a declared column", m.primaryKey)
	}
	for _, attr := range opt.ReadOnly {
		m.readOnly[attr] = true
	}

	scm.models = append(scm.models, m)
	scm.modelsByLowerName[strings.ToLower(name)] = m
	return m, nil
}

func (m *Model) Name() string        { return m.name }
func (m *Model) Table() string       { return m.table }
func (m *Model) Schema() *Schema     { return m.schema }
func (m *Model) HashColumn() string  { return m.hashColumn }
func (m *Model) PrimaryKey() string  { return m.primaryKey }
func (m *Model) Registry() *Registry { return m.registry }

func (m *Model) Logger() *zap.SugaredLogger { return m.logger }

// SetHashColumn renames the hash column. Only meant for configuration time.
func (m *Model) SetHashColumn(name string) error {
	if name == "" {
		return configErrf(m.name, "hash column name must be present")
	}
	if m.columnSet[name] {
		return configErrf(m.name, "hash column %q clashes with a declared column", name)
	}
	m.hashColumn = name
	return nil
}

// Columns returns declared columns, without the hash column.
func (m *Model) Columns() []string {
	return slices.Clone(m.columns)
}

func (m *Model) IsColumn(name string) bool {
	return m.columnSet[name]
}

func (m *Model) IsReadOnly(name string) bool {
	return m.readOnly[name]
}

// IsVirtualAttributeName reports whether name would be stored in the hash
// column: it is neither a declared column nor the hash column itself, and is a
// plain identifier.
func (m *Model) IsVirtualAttributeName(name string) bool {
	return name != m.hashColumn && !m.columnSet[name] && IsValidAttributeName(name)
}

// OnChange installs a hook called for every effective attribute change.
func (m *Model) OnChange(f func(rec *Record, chg *Change)) {
	m.onChange = f
}

// DefineAccessor installs a host binding for base. Host bindings always take
// precedence over bindings materialized on first use.
func (m *Model) DefineAccessor(base string, acc Accessor) error {
	if !IsValidAttributeName(base) {
		return attrErrf(m, base, ErrInvalidAttributeName, "cannot define accessor")
	}
	m.bindingsLock.Lock()
	defer m.bindingsLock.Unlock()
	m.accessors[base] = &acc
	for _, mode := range allModes {
		delete(m.bindings, MethodName(base, mode))
	}
	return nil
}

func (m *Model) accessor(base string) *Accessor {
	m.bindingsLock.RLock()
	defer m.bindingsLock.RUnlock()
	return m.accessors[base]
}

func (m *Model) lookupBinding(token string) (binding, bool) {
	m.bindingsLock.RLock()
	defer m.bindingsLock.RUnlock()
	b, ok := m.bindings[token]
	return b, ok
}

// IsMaterialized reports whether accessors for base were bound on first use.
func (m *Model) IsMaterialized(base string) bool {
	_, ok := m.lookupBinding(base)
	return ok
}

// materialize binds every mode of base, unless the host defined base itself.
func (m *Model) materialize(base string) {
	m.bindingsLock.Lock()
	defer m.bindingsLock.Unlock()
	if m.accessors[base] != nil {
		return
	}
	if _, ok := m.bindings[base]; ok {
		return
	}
	for _, mode := range allModes {
		m.bindings[MethodName(base, mode)] = binding{base, mode}
	}
	m.metrics.materialized(m.name)
	m.logger.Debugw("accessors materialized", "attribute", base)
}

func (m *Model) invalidate(base string) {
	m.bindingsLock.Lock()
	defer m.bindingsLock.Unlock()
	if _, ok := m.bindings[base]; !ok {
		return
	}
	for _, mode := range allModes {
		delete(m.bindings, MethodName(base, mode))
	}
	m.logger.Debugw("accessors invalidated", "attribute", base)
}

// New builds an unsaved record, assigning attrs the way AssignAttributes does.
func (m *Model) New(attrs map[string]any) (*Record, error) {
	rec := m.newRecord()
	if err := rec.AssignAttributes(attrs); err != nil {
		return nil, err
	}
	return rec, nil
}

// Instantiate builds a persisted record from a stored row. Nothing is marked
// dirty. Unknown columns are ignored.
func (m *Model) Instantiate(row Row) (*Record, error) {
	rec := m.newRecord()
	for name, v := range row {
		if m.columnSet[name] {
			rec.columns[name] = v
		}
	}
	blob, err := storedBlob(m, row[m.hashColumn])
	if err != nil {
		return nil, err
	}
	rec.overlay.blob = blob
	rec.persisted = true
	return rec, nil
}

func (m *Model) newRecord() *Record {
	rec := &Record{
		model:   m,
		columns: make(map[string]Value, len(m.columns)),
	}
	rec.overlay = OverlayStore{
		model:   m,
		blob:    NewMap(),
		tracker: &rec.changes,
		notify: func(chg *Change) {
			rec.notify(chg)
		},
	}
	return rec
}

func storedBlob(m *Model, v Value) (*Map, error) {
	switch v.Kind() {
	case KindNull:
		return NewMap(), nil
	case KindMap:
		return v.Map().Clone(), nil
	default:
		return nil, attrErrf(m, m.hashColumn, ErrInvalidHashColumnValue, "stored %s", v.Kind())
	}
}
