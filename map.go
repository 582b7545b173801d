package hashcol

import (
	"maps"
	"slices"
	"sort"
)

type Entry struct {
	Key   string
	Value Value
}

func E(key string, v Value) Entry {
	return Entry{Key: key, Value: v}
}

// Map is a string-keyed map that remembers insertion order. Setting an existing
// key keeps its position. A nil *Map behaves as an empty read-only map.
type Map struct {
	entries []Entry
	index   map[string]int
}

func NewMap(entries ...Entry) *Map {
	m := newMapCap(len(entries))
	for _, e := range entries {
		m.Set(e.Key, e.Value)
	}
	return m
}

func newMapCap(n int) *Map {
	return &Map{
		entries: make([]Entry, 0, n),
		index:   make(map[string]int, n),
	}
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	i, ok := m.index[key]
	if !ok {
		return Value{}, false
	}
	return m.entries[i].Value, true
}

func (m *Map) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.index[key]
	return ok
}

func (m *Map) Set(key string, v Value) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[key]; ok {
		m.entries[i].Value = v
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, Entry{key, v})
}

func (m *Map) Delete(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	i, ok := m.index[key]
	if !ok {
		return Value{}, false
	}
	old := m.entries[i].Value
	m.entries = slices.Delete(m.entries, i, i+1)
	delete(m.index, key)
	for j := i; j < len(m.entries); j++ {
		m.index[m.entries[j].Key] = j
	}
	return old, true
}

// Merge sets every entry of other, in other's order.
func (m *Map) Merge(other *Map) {
	if other == nil {
		return
	}
	for _, e := range other.entries {
		m.Set(e.Key, e.Value)
	}
}

// Keys returns keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	return keys
}

func (m *Map) SortedKeys() []string {
	keys := m.Keys()
	sort.Strings(keys)
	return keys
}

func (m *Map) Entries() []Entry {
	if m == nil {
		return nil
	}
	return slices.Clone(m.entries)
}

// Clone returns a deep copy; cloning nil yields an empty map.
func (m *Map) Clone() *Map {
	out := newMapCap(m.Len())
	if m == nil {
		return out
	}
	for _, e := range m.entries {
		out.entries = append(out.entries, Entry{e.Key, e.Value.Clone()})
	}
	out.index = maps.Clone(m.index)
	return out
}

// Equal compares contents, ignoring key order.
func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	if m == nil {
		return true
	}
	for _, e := range m.entries {
		ov, ok := o.Get(e.Key)
		if !ok || !e.Value.Equal(ov) {
			return false
		}
	}
	return true
}

func (m *Map) Any() map[string]any {
	out := make(map[string]any, m.Len())
	if m == nil {
		return out
	}
	for _, e := range m.entries {
		out[e.Key] = e.Value.Any()
	}
	return out
}
