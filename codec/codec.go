// Package codec implements the wire formats of mini-jsonrpc.
//
// A Codec only knows how to turn an ordered list of named members into one encoded
// object and back. The envelope rules (member names per Mode, version handling, id
// validation, strictness) are written once in envelope.go on top of those primitives, so
// every format produces the same structure:
//
//	JSON:     {"i":1,"m":"hello","p":{"name":"world"}}
//	Msgpack:  map{"i":1,"m":"hello","p":map{"name":"world"}}
//	CBOR:     {"i":1,"m":"hello","p":{"name":"world"}}
//
// Codecs are stateless and safe for concurrent use.
package codec

import (
	"fmt"
	"io"
	"strings"

	"github.com/valyala/bytebufferpool"
)

type CodecType byte

const (
	CodecTypeJSON    CodecType = 0
	CodecTypeMsgpack CodecType = 1
	CodecTypeCBOR    CodecType = 2
)

// maxEnvelopeMembers caps the member count read from a binary map header before anything
// is allocated for it. An envelope has at most four members.
const maxEnvelopeMembers = 16

// Field is one named member of an encoded object.
type Field struct {
	Name  string
	Value any
}

// Object maps member names of a decoded object to their still-encoded values.
type Object map[string][]byte

type Codec interface {
	// EncodeObject encodes fields, in order, as a single object/map.
	EncodeObject(fields []Field) ([]byte, error)
	// DecodeObject splits a top-level object into its raw members. Anything that is not
	// exactly one object fails with a *DecodeError of kind ErrMalformed or ErrBatchUnsupported.
	DecodeObject(data []byte) (Object, error)
	// Unmarshal decodes one raw member into v. When strict is set, unknown struct fields
	// are an error.
	Unmarshal(raw []byte, v any, strict bool) error
	// DecodeID decodes a raw member as an unsigned 32-bit integer, rejecting every other
	// number shape and type.
	DecodeID(raw []byte) (uint32, error)
	// IsNull reports whether a raw member is the format's null value.
	IsNull(raw []byte) bool
	Type() CodecType
}

// GetCodec returns the codec for codecType. Unknown types fall back to JSON, the format
// every peer must support.
func GetCodec(codecType CodecType) Codec {
	switch codecType {
	case CodecTypeMsgpack:
		return &MsgpackCodec{}
	case CodecTypeCBOR:
		return &CBORCodec{}
	default:
		return &JSONCodec{}
	}
}

// ParseCodecType maps a format name ("json", "msgpack", "cbor") to its CodecType.
func ParseCodecType(name string) (CodecType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return CodecTypeJSON, nil
	case "msgpack", "messagepack":
		return CodecTypeMsgpack, nil
	case "cbor":
		return CodecTypeCBOR, nil
	}
	return 0, fmt.Errorf("codec: unknown codec %q", name)
}

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeMsgpack:
		return "msgpack"
	case CodecTypeCBOR:
		return "cbor"
	}
	return fmt.Sprintf("codec(%d)", byte(t))
}

// encodePooled runs write against a pooled buffer and returns a copy of what was written.
func encodePooled(write func(w io.Writer) error) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := write(buf); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.B...), nil
}
