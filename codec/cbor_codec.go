package codec

import (
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// CBORCodec encodes envelopes as CBOR maps. The top-level map keeps the envelope's member
// order; member values use Core Deterministic Encoding. Struct fields fall back to their
// `json` tags, so the same types serve every format. Duplicate map keys are rejected.
// Pros: compact, standardized (RFC 8949).
// Cons: not human-readable, fewer peers speak it than MessagePack.
type CBORCodec struct{}

const (
	cborMaxNestedLevels = 32
	cborMaxElements     = 1 << 16

	cborMajorArray = 4
	cborMajorMap   = 5
)

var (
	cborEnc    = mustEncMode(cbor.CoreDetEncOptions())
	cborStrict = mustDecMode(cborDecOptions(true))
	cborLax    = mustDecMode(cborDecOptions(false))
)

func cborDecOptions(strict bool) cbor.DecOptions {
	opts := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels:  cborMaxNestedLevels,
		MaxArrayElements: cborMaxElements,
		MaxMapPairs:      cborMaxElements,
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
	}
	if strict {
		opts.ExtraReturnErrors = cbor.ExtraDecErrorUnknownField
	}
	return opts
}

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	dm, err := opts.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

func (c *CBORCodec) EncodeObject(fields []Field) ([]byte, error) {
	return encodePooled(func(w io.Writer) error {
		if _, err := w.Write(cborMapHeader(len(fields))); err != nil {
			return err
		}
		for _, f := range fields {
			key, err := cborEnc.Marshal(f.Name)
			if err != nil {
				return err
			}
			val, err := cborEnc.Marshal(f.Value)
			if err != nil {
				return fmt.Errorf("CBORCodec: encode %q: %w", f.Name, err)
			}
			w.Write(key)
			w.Write(val)
		}
		return nil
	})
}

// cborMapHeader writes the head of a definite-length map. Members are written in the
// order given, the envelope layer decides it.
func cborMapHeader(n int) []byte {
	const major = cborMajorMap << 5
	switch {
	case n < 24:
		return []byte{major | byte(n)}
	case n <= math.MaxUint8:
		return []byte{major | 24, byte(n)}
	default:
		return []byte{major | 25, byte(n >> 8), byte(n)}
	}
}

func (c *CBORCodec) DecodeObject(data []byte) (Object, error) {
	if len(data) == 0 {
		return nil, decodeErr(ErrMalformed, "", errors.New("empty payload"))
	}
	switch data[0] >> 5 {
	case cborMajorMap:
	case cborMajorArray:
		return nil, decodeErr(ErrBatchUnsupported, "", nil)
	default:
		return nil, decodeErr(ErrMalformed, "", errors.New("payload is not a map"))
	}

	var members map[string]cbor.RawMessage
	if err := cborStrict.Unmarshal(data, &members); err != nil {
		return nil, decodeErr(ErrMalformed, "", err)
	}
	if len(members) > maxEnvelopeMembers {
		return nil, decodeErr(ErrMalformed, "", fmt.Errorf("map has %d members", len(members)))
	}
	obj := make(Object, len(members))
	for k, v := range members {
		obj[k] = v
	}
	return obj, nil
}

func (c *CBORCodec) Unmarshal(raw []byte, v any, strict bool) error {
	if strict {
		return cborStrict.Unmarshal(raw, v)
	}
	return cborLax.Unmarshal(raw, v)
}

func (c *CBORCodec) DecodeID(raw []byte) (uint32, error) {
	var v any
	if err := cborStrict.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case uint64:
		if n <= math.MaxUint32 {
			return uint32(n), nil
		}
		return 0, fmt.Errorf("%d is out of range", n)
	case int64:
		return 0, fmt.Errorf("%d is out of range", n)
	}
	return 0, fmt.Errorf("id has type %T", v)
}

// IsNull accepts both null and undefined.
func (c *CBORCodec) IsNull(raw []byte) bool {
	return len(raw) == 1 && (raw[0] == 0xf6 || raw[0] == 0xf7)
}

func (c *CBORCodec) Type() CodecType {
	return CodecTypeCBOR
}
