package hashcol

import (
	"slices"
	"strconv"

	"go.uber.org/zap"
)

// Codec converts one domain of runtime values to a storable shape and back.
// Codecs are shared between models and must be immutable.
type Codec interface {
	Name() string
	// CanDump reports whether this codec serializes the given runtime value.
	CanDump(v Value) bool
	// CanLoad reports whether this codec deserializes the given stored value.
	CanLoad(v Value) bool
	Dump(path string, v Value) (Value, error)
	Load(path string, v Value) (Value, error)
}

type direction int

const (
	dirDump direction = iota
	dirLoad
)

func (dir direction) String() string {
	if dir == dirDump {
		return "dump"
	}
	return "load"
}

// Registry is an ordered codec list. The most recently registered codec has
// the highest precedence.
//
// Registration is a configuration-time activity: call Freeze once models are
// set up, after which Dump and Load may run concurrently. There is no locking.
type Registry struct {
	codecs  []Codec
	frozen  bool
	metrics *Metrics
	logger  *zap.SugaredLogger
}

func NewRegistry() *Registry {
	return &Registry{logger: zap.NewNop().Sugar()}
}

// DefaultRegistry returns a new registry holding DateTimeCodec.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	ensure(r.Register(DateTimeCodec{}))
	return r
}

func (r *Registry) SetLogger(logger *zap.SugaredLogger) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	r.logger = logger
}

func (r *Registry) Instrument(m *Metrics) {
	r.metrics = m
}

// Register adds c in front of all other codecs, replacing any codec with the
// same name.
func (r *Registry) Register(c Codec) error {
	if r.frozen {
		return configErrf("", "cannot register codec %s: registry is frozen", c.Name())
	}
	r.remove(c.Name())
	r.codecs = slices.Insert(r.codecs, 0, c)
	r.logger.Debugw("codec registered", "codec", c.Name(), "position", 0, "count", len(r.codecs))
	return nil
}

func (r *Registry) Deregister(name string) (bool, error) {
	if r.frozen {
		return false, configErrf("", "cannot deregister codec %s: registry is frozen", name)
	}
	found := r.remove(name)
	if found {
		r.logger.Debugw("codec deregistered", "codec", name, "count", len(r.codecs))
	}
	return found, nil
}

func (r *Registry) remove(name string) bool {
	n := len(r.codecs)
	r.codecs = slices.DeleteFunc(r.codecs, func(c Codec) bool {
		return c.Name() == name
	})
	return len(r.codecs) != n
}

func (r *Registry) Freeze()      { r.frozen = true }
func (r *Registry) Frozen() bool { return r.frozen }

func (r *Registry) Codecs() []Codec {
	return slices.Clone(r.codecs)
}

func (r *Registry) Lookup(name string) Codec {
	for _, c := range r.codecs {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// Dump converts a runtime value into stored form. path is a diagnostic
// locator like "prefs.dates[2]" passed down to codecs.
func (r *Registry) Dump(path string, v Value) (Value, error) {
	return r.convert(dirDump, path, v)
}

// Load converts a stored value back into runtime form.
func (r *Registry) Load(path string, v Value) (Value, error) {
	return r.convert(dirLoad, path, v)
}

func (r *Registry) convert(dir direction, path string, v Value) (Value, error) {
	for _, c := range r.codecs {
		var claimed bool
		if dir == dirDump {
			claimed = c.CanDump(v)
		} else {
			claimed = c.CanLoad(v)
		}
		if !claimed {
			continue
		}
		var out Value
		var err error
		if dir == dirDump {
			out, err = c.Dump(path, v)
		} else {
			out, err = c.Load(path, v)
		}
		if err != nil {
			return Value{}, &CodecError{Codec: c.Name(), Path: path, Err: err}
		}
		r.metrics.codecApplied(c.Name(), dir)
		return out, nil
	}

	switch v.Kind() {
	case KindMap:
		src := v.Map()
		out := newMapCap(src.Len())
		for _, e := range src.entries {
			cv, err := r.convert(dir, path+"."+e.Key, e.Value)
			if err != nil {
				return Value{}, err
			}
			out.Set(e.Key, cv)
		}
		return MapValue(out), nil
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			cv, err := r.convert(dir, path+"["+strconv.Itoa(i)+"]", item)
			if err != nil {
				return Value{}, err
			}
			items[i] = cv
		}
		return List(items...), nil
	default:
		return v, nil
	}
}
