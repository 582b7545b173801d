package hashcol

// OverlayStore owns the hash column of one record. The blob is kept in stored
// (codec-dumped) form and decoded on every read.
type OverlayStore struct {
	model   *Model
	blob    *Map
	tracker *ChangeTracker
	notify  func(chg *Change)
}

func (s *OverlayStore) Has(name string) bool {
	return s.blob.Has(name)
}

// Keys returns virtual attribute names, sorted.
func (s *OverlayStore) Keys() []string {
	return s.blob.SortedKeys()
}

// Stored returns a copy of the blob in stored form.
func (s *OverlayStore) Stored() *Map {
	return s.blob.Clone()
}

// Decoded returns the whole blob in runtime form.
func (s *OverlayStore) Decoded() (*Map, error) {
	return s.decode(s.blob)
}

func (s *OverlayStore) decode(blob *Map) (*Map, error) {
	v, err := s.model.registry.Load(s.model.hashColumn, MapValue(blob))
	if err != nil {
		return nil, err
	}
	return v.Map(), nil
}

// path is the codec locator of a virtual attribute. It matches the locator a
// whole-blob conversion of the hash column passes for the same key.
func (s *OverlayStore) path(name string) string {
	return s.model.hashColumn + "." + name
}

// Read returns the decoded value of name, or null if absent.
func (s *OverlayStore) Read(name string) (Value, error) {
	v, ok := s.blob.Get(name)
	if !ok {
		return Null(), nil
	}
	return s.model.registry.Load(s.path(name), v)
}

// prepare encodes v for name. written is v as it will read back, current is
// what name reads as now.
func (s *OverlayStore) prepare(name string, v Value) (current, encoded, written Value, err error) {
	current, err = s.Read(name)
	if err != nil {
		return
	}
	encoded, err = s.model.registry.Dump(s.path(name), v)
	if err != nil {
		return
	}
	written, err = s.model.registry.Load(s.path(name), encoded)
	return
}

// Write encodes v and stores it under name. Writing the value name already
// reads as is a no-op, so null is never stored under an absent name.
func (s *OverlayStore) Write(name string, v Value) error {
	current, encoded, written, err := s.prepare(name, v)
	if err != nil {
		return err
	}
	if current.Equal(written) {
		return nil
	}
	if s.model.IsReadOnly(name) {
		return attrErrf(s.model, name, ErrReadOnlyAttribute, "")
	}
	newBlob := s.blob.Clone()
	newBlob.Set(name, encoded)
	if err := s.commit(newBlob); err != nil {
		return err
	}
	if s.tracker.record(name, current, written) {
		s.notify(&Change{Name: name, Before: current, After: written})
	}
	return nil
}

// Delete removes name and returns its previous decoded value.
func (s *OverlayStore) Delete(name string) (Value, bool, error) {
	if !s.blob.Has(name) {
		return Null(), false, nil
	}
	if s.model.IsReadOnly(name) {
		return Null(), false, attrErrf(s.model, name, ErrReadOnlyAttribute, "cannot delete")
	}
	prev, err := s.Read(name)
	if err != nil {
		return Null(), false, err
	}
	newBlob := s.blob.Clone()
	newBlob.Delete(name)
	if err := s.commit(newBlob); err != nil {
		return Null(), false, err
	}
	if s.tracker.record(name, prev, Null()) {
		s.notify(&Change{Name: name, Before: prev, After: Null()})
	}
	s.model.invalidate(name)
	return prev, true, nil
}

// Replace swaps the whole blob for m, which is in runtime form. Every key must
// be a virtual attribute name.
func (s *OverlayStore) Replace(m *Map) error {
	for _, k := range m.Keys() {
		if !s.model.IsVirtualAttributeName(k) {
			return attrErrf(s.model, k, ErrInvalidAttributeName, "in %s", s.model.hashColumn)
		}
	}
	encoded, err := s.model.registry.Dump(s.model.hashColumn, MapValue(m))
	if err != nil {
		return err
	}
	return s.commit(encoded.Map())
}

// Merge encodes and sets every entry of attrs, keeping other keys.
func (s *OverlayStore) Merge(attrs *Map) error {
	newBlob, err := s.merged(attrs)
	if err != nil {
		return err
	}
	return s.commit(newBlob)
}

func (s *OverlayStore) merged(attrs *Map) (*Map, error) {
	newBlob := s.blob.Clone()
	for _, e := range attrs.Entries() {
		if e.Value.IsNull() && !newBlob.Has(e.Key) {
			continue
		}
		encoded, err := s.model.registry.Dump(s.path(e.Key), e.Value)
		if err != nil {
			return nil, err
		}
		newBlob.Set(e.Key, encoded)
	}
	return newBlob, nil
}

// commit installs newBlob, marking the hash column dirty when the decoded
// contents differ. The before/after snapshots cover the whole blob, because
// the whole column is what gets written.
func (s *OverlayStore) commit(newBlob *Map) error {
	before, err := s.decode(s.blob)
	if err != nil {
		return err
	}
	after, err := s.decode(newBlob)
	if err != nil {
		return err
	}
	s.blob = newBlob
	col := s.model.hashColumn
	if s.tracker.record(col, MapValue(before), MapValue(after)) {
		s.model.metrics.dirtyMarked(s.model.name)
		s.model.logger.Debugw("hash column changed", "column", col, "keys", after.Len())
		s.notify(&Change{Name: col, Before: MapValue(before), After: MapValue(after)})
	}
	return nil
}

// reset installs a stored blob without change tracking.
func (s *OverlayStore) reset(blob *Map) {
	s.blob = blob
}
