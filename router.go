package hashcol

// Call dispatches an attribute token such as "name", "name=", "name?" or
// "name_changed?" on rec. Write tokens take exactly one argument, every other
// mode takes none.
//
// The first call with an unbound virtual name binds all modes of its base name
// on the model, so later calls skip classification. Host accessors defined via
// Model.DefineAccessor are used instead of the generic read and write paths.
func (rec *Record) Call(token string, args ...any) (Value, error) {
	m := rec.model
	desc, err := rec.resolve(token)
	if err != nil {
		return Null(), err
	}

	want := 0
	if desc.Mode == ModeWrite {
		want = 1
	}
	if len(args) != want {
		return Null(), attrErrf(m, token, ErrWrongArgumentCount, "got %d, want %d", len(args), want)
	}

	base := desc.Base
	acc := m.accessor(base)
	switch desc.Mode {
	case ModeRead:
		if acc != nil && acc.Get != nil {
			return acc.Get(rec)
		}
		return rec.Read(base)
	case ModeWrite:
		v, err := FromAny(args[0])
		if err != nil {
			return Null(), attrErrf(m, token, err, "cannot convert %T", args[0])
		}
		if acc != nil && acc.Set != nil {
			err = acc.Set(rec, v)
		} else {
			err = rec.Write(base, v)
		}
		if err != nil {
			return Null(), err
		}
		return v, nil
	case ModePredicate:
		ok, err := rec.Query(base)
		return Bool(ok), err
	case ModeBeforeTypeCast:
		return rec.ReadBeforeTypeCast(base)
	case ModeChangedQuery:
		return Bool(rec.Changed(base)), nil
	case ModePreviousValue:
		return rec.Was(base)
	case ModeChange:
		if chg, ok := rec.Change(base); ok {
			return chg.Pair(), nil
		}
		return Null(), nil
	case ModeWillChange:
		return Null(), rec.WillChange(base)
	default:
		panic("unreachable")
	}
}

func (rec *Record) resolve(token string) (Descriptor, error) {
	m := rec.model
	if b, ok := m.lookupBinding(token); ok {
		return Descriptor{Base: b.base, Mode: b.mode}, nil
	}
	desc, err := Classify(token)
	if err != nil {
		return Descriptor{}, attrErrf(m, token, ErrInvalidAttributeName, "")
	}
	if m.IsVirtualAttributeName(desc.Base) {
		m.materialize(desc.Base)
	}
	return desc, nil
}

// RespondTo reports whether Call(token) addresses something that exists: a
// column, a bound or host-defined attribute, or a virtual attribute present on
// this record.
func (rec *Record) RespondTo(token string) bool {
	m := rec.model
	if _, ok := m.lookupBinding(token); ok {
		return true
	}
	desc, err := Classify(token)
	if err != nil {
		return false
	}
	base := desc.Base
	return base == m.hashColumn || m.columnSet[base] || m.accessor(base) != nil || rec.overlay.Has(base)
}
