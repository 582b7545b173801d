package hashcol

import (
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

var (
	_ msgpack.CustomEncoder = Value{}
	_ msgpack.CustomDecoder = (*Value)(nil)
)

// EncodeMsgpack writes maps in insertion order; integral numbers are written
// as integers to keep rows compact.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch v.kind {
	case KindBool:
		return enc.EncodeBool(v.b)
	case KindNumber:
		if isIntegral(v.n) {
			return enc.EncodeInt(int64(v.n))
		}
		return enc.EncodeFloat64(v.n)
	case KindText:
		return enc.EncodeString(v.s)
	case KindTime:
		return enc.EncodeTime(v.t)
	case KindList:
		if err := enc.EncodeArrayLen(len(v.list)); err != nil {
			return err
		}
		for _, item := range v.list {
			if err := item.EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	case KindMap:
		if err := enc.EncodeMapLen(v.m.Len()); err != nil {
			return err
		}
		for _, e := range v.m.Entries() {
			if err := enc.EncodeString(e.Key); err != nil {
				return err
			}
			if err := e.Value.EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.EncodeNil()
	}
}

func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	val, err := decodeMsgpackValue(dec)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

func decodeMsgpackValue(dec *msgpack.Decoder) (Value, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return Value{}, err
	}
	switch {
	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return Value{}, err
		}
		m := newMapCap(n)
		for i := 0; i < n; i++ {
			k, err := dec.DecodeInterfaceLoose()
			if err != nil {
				return Value{}, err
			}
			val, err := decodeMsgpackValue(dec)
			if err != nil {
				return Value{}, err
			}
			m.Set(canonicalKey(k), val)
		}
		return MapValue(m), nil

	case msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return Value{}, err
		}
		items := make([]Value, n)
		for i := range items {
			items[i], err = decodeMsgpackValue(dec)
			if err != nil {
				return Value{}, err
			}
		}
		return List(items...), nil
	}

	x, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return Value{}, err
	}
	return FromAny(x)
}
