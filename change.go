package hashcol

import (
	"maps"
	"slices"
	"sort"
)

type Change struct {
	Name   string
	Before Value
	After  Value
}

func (chg *Change) HasBefore() bool {
	return !chg.Before.IsNull()
}
func (chg *Change) HasAfter() bool {
	return !chg.After.IsNull()
}

// Pair returns [before, after], the shape of a "name_change" query.
func (chg *Change) Pair() Value {
	return List(chg.Before, chg.After)
}

// ChangeTracker records unsaved changes per attribute name. The first
// recorded Before is kept until the change is applied; After follows the
// latest write. Writing the original value back clears the change.
type ChangeTracker struct {
	changes  map[string]*Change
	previous map[string]*Change
}

func (ct *ChangeTracker) Changed(name string) bool {
	_, ok := ct.changes[name]
	return ok
}

func (ct *ChangeTracker) IsChanged() bool {
	return len(ct.changes) > 0
}

func (ct *ChangeTracker) Change(name string) (Change, bool) {
	chg, ok := ct.changes[name]
	if !ok {
		return Change{}, false
	}
	return *chg, true
}

// Was returns the value before the unsaved change, or current if name is
// unchanged.
func (ct *ChangeTracker) Was(name string, current Value) Value {
	if chg, ok := ct.changes[name]; ok {
		return chg.Before
	}
	return current
}

func (ct *ChangeTracker) ChangedNames() []string {
	return slices.Sorted(maps.Keys(ct.changes))
}

func (ct *ChangeTracker) Changes() []Change {
	return sortedChanges(ct.changes)
}

// PreviousChanges returns the changes that were applied by the last save.
func (ct *ChangeTracker) PreviousChanges() []Change {
	return sortedChanges(ct.previous)
}

// record notes a write of name from before to after and reports whether the
// write was effective.
func (ct *ChangeTracker) record(name string, before, after Value) bool {
	if chg, ok := ct.changes[name]; ok {
		if chg.Before.Equal(after) {
			delete(ct.changes, name)
		} else {
			chg.After = after
		}
		return !before.Equal(after)
	}
	if before.Equal(after) {
		return false
	}
	if ct.changes == nil {
		ct.changes = make(map[string]*Change)
	}
	ct.changes[name] = &Change{Name: name, Before: before, After: after}
	return true
}

// WillChange marks name as changed without a write, snapshotting current.
func (ct *ChangeTracker) WillChange(name string, current Value) {
	if _, ok := ct.changes[name]; ok {
		return
	}
	if ct.changes == nil {
		ct.changes = make(map[string]*Change)
	}
	ct.changes[name] = &Change{Name: name, Before: current.Clone(), After: current}
}

// ChangesApplied moves unsaved changes to previous changes.
func (ct *ChangeTracker) ChangesApplied() {
	ct.previous = ct.changes
	ct.changes = nil
}

func (ct *ChangeTracker) Clear() {
	ct.changes = nil
	ct.previous = nil
}

func sortedChanges(m map[string]*Change) []Change {
	out := make([]Change, 0, len(m))
	for _, chg := range m {
		out = append(out, *chg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
