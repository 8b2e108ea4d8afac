package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// JSONCodec uses Go's standard library encoding/json for serialization.
// Pros: human-readable, cross-language, easy to debug.
// Cons: slower due to reflection + string parsing, larger payload (field names repeated).
type JSONCodec struct{}

func (c *JSONCodec) EncodeObject(fields []Field) ([]byte, error) {
	return encodePooled(func(w io.Writer) error {
		if _, err := w.Write([]byte{'{'}); err != nil {
			return err
		}
		for i, f := range fields {
			if i > 0 {
				if _, err := w.Write([]byte{','}); err != nil {
					return err
				}
			}
			key, err := json.Marshal(f.Name)
			if err != nil {
				return err
			}
			val, err := json.Marshal(f.Value)
			if err != nil {
				return fmt.Errorf("JSONCodec: encode %q: %w", f.Name, err)
			}
			w.Write(key)
			w.Write([]byte{':'})
			w.Write(val)
		}
		_, err := w.Write([]byte{'}'})
		return err
	})
}

func (c *JSONCodec) DecodeObject(data []byte) (Object, error) {
	trimmed := trimLeftWhitespace(data)
	if len(trimmed) == 0 {
		return nil, decodeErr(ErrMalformed, "", errors.New("empty payload"))
	}
	switch trimmed[0] {
	case '{':
	case '[':
		return nil, decodeErr(ErrBatchUnsupported, "", nil)
	default:
		return nil, decodeErr(ErrMalformed, "", errors.New("payload is not an object"))
	}

	// Walk the members one by one: a map would let the last duplicate key win.
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil {
		return nil, decodeErr(ErrMalformed, "", err)
	}
	obj := make(Object)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, decodeErr(ErrMalformed, "", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, decodeErr(ErrMalformed, "", fmt.Errorf("unexpected token %v", tok))
		}
		if _, dup := obj[key]; dup {
			return nil, decodeErr(ErrMalformed, key, errors.New("duplicate member"))
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, decodeErr(ErrMalformed, key, err)
		}
		obj[key] = raw
	}
	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return nil, decodeErr(ErrMalformed, "", errors.New("unterminated object"))
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, decodeErr(ErrMalformed, "", errors.New("trailing data after object"))
	}
	return obj, nil
}

func (c *JSONCodec) Unmarshal(raw []byte, v any, strict bool) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after value")
	}
	return nil
}

func (c *JSONCodec) DecodeID(raw []byte) (uint32, error) {
	s := string(bytes.TrimSpace(raw))
	// Base 10 without sign, fraction or exponent, so "-1", "1.0" and "1e3" all fail.
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%.32s is not an unsigned 32-bit integer", s)
	}
	return uint32(n), nil
}

func (c *JSONCodec) IsNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}

// trimLeftWhitespace skips the whitespace JSON allows before a value.
func trimLeftWhitespace(data []byte) []byte {
	for i, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
		default:
			return data[i:]
		}
	}
	return nil
}
