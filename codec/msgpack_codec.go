package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// MsgpackCodec encodes envelopes as MessagePack maps keyed like their JSON counterparts.
// Struct fields are named by their `json` tags so one set of types serves every format.
// Pros: compact, fast, schema-less like JSON.
// Cons: not human-readable.
type MsgpackCodec struct{}

func (c *MsgpackCodec) EncodeObject(fields []Field) ([]byte, error) {
	return encodePooled(func(w io.Writer) error {
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		enc.UseCompactInts(true)

		if err := enc.EncodeMapLen(len(fields)); err != nil {
			return err
		}
		for _, f := range fields {
			if err := enc.EncodeString(f.Name); err != nil {
				return err
			}
			if err := enc.Encode(f.Value); err != nil {
				return fmt.Errorf("MsgpackCodec: encode %q: %w", f.Name, err)
			}
		}
		return nil
	})
}

func (c *MsgpackCodec) DecodeObject(data []byte) (Object, error) {
	rd := bytes.NewReader(data)
	dec := msgpack.NewDecoder(rd)

	code, err := dec.PeekCode()
	if err != nil {
		return nil, decodeErr(ErrMalformed, "", errors.New("empty payload"))
	}
	switch {
	case msgpcode.IsFixedMap(code), code == msgpcode.Map16, code == msgpcode.Map32:
	case msgpcode.IsFixedArray(code), code == msgpcode.Array16, code == msgpcode.Array32:
		return nil, decodeErr(ErrBatchUnsupported, "", nil)
	default:
		return nil, decodeErr(ErrMalformed, "", errors.New("payload is not a map"))
	}

	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, decodeErr(ErrMalformed, "", err)
	}
	if n > maxEnvelopeMembers {
		return nil, decodeErr(ErrMalformed, "", fmt.Errorf("map header declares %d members", n))
	}

	obj := make(Object, n)
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return nil, decodeErr(ErrMalformed, "", err)
		}
		if _, dup := obj[key]; dup {
			return nil, decodeErr(ErrMalformed, key, errors.New("duplicate member"))
		}
		raw, err := dec.DecodeRaw()
		if err != nil {
			return nil, decodeErr(ErrMalformed, key, err)
		}
		obj[key] = raw
	}
	if rd.Len() != 0 {
		return nil, decodeErr(ErrMalformed, "", errors.New("trailing data after map"))
	}
	return obj, nil
}

func (c *MsgpackCodec) Unmarshal(raw []byte, v any, strict bool) error {
	rd := bytes.NewReader(raw)
	dec := msgpack.NewDecoder(rd)
	dec.SetCustomStructTag("json")
	dec.DisallowUnknownFields(strict)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if rd.Len() != 0 {
		return errors.New("trailing data after value")
	}
	return nil
}

func (c *MsgpackCodec) DecodeID(raw []byte) (uint32, error) {
	v, err := msgpack.NewDecoder(bytes.NewReader(raw)).DecodeInterfaceLoose()
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int64:
		if n >= 0 && n <= math.MaxUint32 {
			return uint32(n), nil
		}
		return 0, fmt.Errorf("%d is out of range", n)
	case uint64:
		if n <= math.MaxUint32 {
			return uint32(n), nil
		}
		return 0, fmt.Errorf("%d is out of range", n)
	}
	return 0, fmt.Errorf("id has type %T", v)
}

func (c *MsgpackCodec) IsNull(raw []byte) bool {
	return len(raw) == 1 && raw[0] == msgpcode.Nil
}

func (c *MsgpackCodec) Type() CodecType {
	return CodecTypeMsgpack
}
