package hashcol

import (
	"bytes"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// EncodingMethod is the byte-level format a persistence engine uses for rows
// and hash column blobs.
type EncodingMethod int

const (
	MsgPack EncodingMethod = iota
	JSON

	DefaultEncoding = MsgPack
)

func (enc EncodingMethod) String() string {
	switch enc {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	default:
		return "invalid"
	}
}

func ParseEncoding(name string) (EncodingMethod, error) {
	switch strings.ToLower(name) {
	case "", "msgpack":
		return MsgPack, nil
	case "json":
		return JSON, nil
	default:
		return 0, configErrf("", "unknown encoding %q", name)
	}
}

func (enc EncodingMethod) Encode(v Value) ([]byte, error) {
	switch enc {
	case MsgPack:
		var buf bytes.Buffer
		e := msgpack.GetEncoder()
		e.Reset(&buf)
		err := v.EncodeMsgpack(e)
		msgpack.PutEncoder(e)
		if err != nil {
			return nil, dataErrf(nil, 0, err, "failed to encode %s value using MsgPack", v.Kind())
		}
		return buf.Bytes(), nil
	case JSON:
		raw, err := v.MarshalJSON()
		if err != nil {
			return nil, dataErrf(nil, 0, err, "failed to encode %s value to JSON", v.Kind())
		}
		return raw, nil
	default:
		panic("unsupported encoding")
	}
}

// Decode parses data; empty data decodes to null.
func (enc EncodingMethod) Decode(data []byte) (Value, error) {
	if len(data) == 0 {
		return Null(), nil
	}
	switch enc {
	case MsgPack:
		var r bytes.Reader
		r.Reset(data)
		d := msgpack.GetDecoder()
		d.Reset(&r)
		v, err := decodeMsgpackValue(d)
		msgpack.PutDecoder(d)
		if err != nil {
			return Value{}, dataErrf(data, int(r.Size())-r.Len(), err, "failed to decode msgpack")
		}
		return v, nil
	case JSON:
		v, err := ParseJSON(data)
		if err != nil {
			return Value{}, dataErrf(data, 0, err, "failed to decode JSON")
		}
		return v, nil
	default:
		panic("unsupported encoding")
	}
}
