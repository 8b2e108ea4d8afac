package codec

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-jsonrpc/message"
)

func TestRequestRoundTrip(t *testing.T) {
	for _, c := range allCodecs() {
		t.Run(c.Type().String()+"/compact", func(t *testing.T) { requestRoundTrip[message.Compact](t, c) })
		t.Run(c.Type().String()+"/standard", func(t *testing.T) { requestRoundTrip[message.Standard](t, c) })
	}
}

func requestRoundTrip[Md message.Mode](t *testing.T, c Codec) {
	reqs := []message.Request[testMethod]{
		message.NewRequest[testMethod](1, hello{Name: "world"}),
		message.NewRequest[testMethod](4294967295, add{A: 2, B: 3}),
		message.NewRequest[testMethod](0, ping{}),
		message.NewNotification[testMethod](hello{Name: "quiet"}),
	}
	for _, req := range reqs {
		data, err := EncodeRequest[Md](c, req)
		require.NoError(t, err)

		got, err := DecodeRequest[Md](c, testMethods, data, DecodeOptions{})
		require.NoError(t, err)
		assert.Equal(t, req, got)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	for _, c := range allCodecs() {
		t.Run(c.Type().String()+"/compact", func(t *testing.T) { responseRoundTrip[message.Compact](t, c) })
		t.Run(c.Type().String()+"/standard", func(t *testing.T) { responseRoundTrip[message.Standard](t, c) })
	}
}

func responseRoundTrip[Md message.Mode](t *testing.T, c Codec) {
	resps := []*message.Response[any]{
		message.NewResult[any](1, "Hello, world"),
		message.NewResult[any](2, sum{Sum: 5}),
		message.NewErrorResponse[any](3, message.NewError(message.MethodNotFound, "method not found")),
		message.NewErrorResponse[any](4294967295, message.NewError(-1, "custom")),
	}
	for _, resp := range resps {
		data, err := EncodeResponse[Md](c, resp)
		require.NoError(t, err)

		got, err := DecodeResponse[Md](c, testResults, data, DecodeOptions{})
		require.NoError(t, err)
		assert.Equal(t, resp, got)
	}
}

func TestErrorDataRoundTrip(t *testing.T) {
	for _, c := range allCodecs() {
		t.Run(c.Type().String(), func(t *testing.T) {
			resp := message.NewErrorResponse[any](9, message.NewError(message.InvalidParams, "bad").WithData("field a"))
			data, err := EncodeResponse[message.Compact](c, resp)
			require.NoError(t, err)

			got, err := DecodeResponse[message.Compact](c, testResults, data, DecodeOptions{})
			require.NoError(t, err)
			require.NotNil(t, got.Error)
			assert.Equal(t, "field a", got.Error.Data)
		})
	}
}

func TestCompactJSONWireFormat(t *testing.T) {
	c := &JSONCodec{}

	data, err := EncodeRequest[message.Compact](c, message.NewRequest[testMethod](1, hello{Name: "world"}))
	require.NoError(t, err)
	assert.Equal(t, `{"i":1,"m":"hello","p":{"name":"world"}}`, string(data))

	data, err = EncodeResponse[message.Compact](c, message.NewResult[any](1, "Hello, world"))
	require.NoError(t, err)
	assert.Equal(t, `{"i":1,"r":"Hello, world"}`, string(data))

	data, err = EncodeResponse[message.Compact](c, message.NewErrorResponse[any](1, message.ErrMethodNotFound))
	require.NoError(t, err)
	assert.Equal(t, `{"i":1,"e":{"code":-32601,"message":"method not found"}}`, string(data))

	data, err = EncodeRequest[message.Compact](c, message.NewNotification[testMethod](ping{}))
	require.NoError(t, err)
	assert.Equal(t, `{"m":"ping","p":{}}`, string(data))
}

func TestStandardJSONWireFormat(t *testing.T) {
	c := &JSONCodec{}

	data, err := EncodeRequest[message.Standard](c, message.NewRequest[testMethod](1, hello{Name: "world"}))
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"method":"hello","params":{"name":"world"}}`, string(data))

	data, err = EncodeResponse[message.Standard](c, message.NewResult[any](1, sum{Sum: 3}))
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":{"sum":3}}`, string(data))
}

func TestEncodeRequestNilMethod(t *testing.T) {
	_, err := EncodeRequest[message.Compact](&JSONCodec{}, message.NewRequest[testMethod](1, nil))
	assert.ErrorIs(t, err, ErrNilMethod)
}

func TestDecodeRequestErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		kind    error
		field   string
	}{
		{"truncated", `{"i":1,"m":"hello"`, ErrMalformed, ""},
		{"not an object", `"hello"`, ErrMalformed, ""},
		{"empty", ``, ErrMalformed, ""},
		{"whitespace", "  \n", ErrMalformed, ""},
		{"batch", `[{"i":1,"m":"ping"}]`, ErrBatchUnsupported, ""},
		{"negative id", `{"i":-1,"m":"ping"}`, ErrIDType, "i"},
		{"fractional id", `{"i":1.5,"m":"ping"}`, ErrIDType, "i"},
		{"exponent id", `{"i":1e3,"m":"ping"}`, ErrIDType, "i"},
		{"string id", `{"i":"1","m":"ping"}`, ErrIDType, "i"},
		{"id out of range", `{"i":4294967296,"m":"ping"}`, ErrIDType, "i"},
		{"missing method", `{"i":1}`, ErrMissingField, "m"},
		{"method not a string", `{"i":1,"m":5}`, ErrInvalidField, "m"},
		{"unknown method", `{"i":1,"m":"nope"}`, ErrUnknownMethod, "m"},
		{"params wrong type", `{"i":1,"m":"hello","p":{"name":1}}`, ErrInvalidParams, "p"},
		{"params unknown field", `{"i":1,"m":"hello","p":{"name":"x","age":3}}`, ErrInvalidParams, "p"},
		{"unexpected member", `{"i":1,"m":"ping","x":1}`, ErrUnexpectedField, "x"},
		{"standard names in compact", `{"jsonrpc":"2.0","id":1,"method":"ping"}`, ErrUnexpectedField, "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest[message.Compact](&JSONCodec{}, testMethods, []byte(tt.payload), DecodeOptions{})
			require.ErrorIs(t, err, tt.kind)

			var decErr *DecodeError
			require.ErrorAs(t, err, &decErr)
			assert.Equal(t, tt.field, decErr.Field)
		})
	}
}

func TestDecodeRequestStandardVersion(t *testing.T) {
	c := &JSONCodec{}
	for _, payload := range []string{
		`{"id":1,"method":"ping"}`,
		`{"jsonrpc":"1.0","id":1,"method":"ping"}`,
		`{"jsonrpc":2,"id":1,"method":"ping"}`,
		`{"i":1,"m":"ping"}`,
	} {
		_, err := DecodeRequest[message.Standard](c, testMethods, []byte(payload), DecodeOptions{})
		assert.ErrorIs(t, err, ErrVersionMismatch, payload)
	}

	// Compact mode never checks the version member.
	req, err := DecodeRequest[message.Compact](c, testMethods, []byte(`{"jsonrpc":"1.0","i":1,"m":"ping"}`), DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, ping{}, req.Method)
}

func TestDecodeRequestNotifications(t *testing.T) {
	c := &JSONCodec{}
	for _, payload := range []string{
		`{"m":"hello","p":{"name":"a"}}`,
		`{"i":null,"m":"hello","p":{"name":"a"}}`,
	} {
		req, err := DecodeRequest[message.Compact](c, testMethods, []byte(payload), DecodeOptions{})
		require.NoError(t, err)
		assert.True(t, req.IsNotification())
		assert.Equal(t, hello{Name: "a"}, req.Method)
	}

	// Absent or null params yield the zero variant.
	for _, payload := range []string{`{"i":2,"m":"add"}`, `{"i":2,"m":"add","p":null}`} {
		req, err := DecodeRequest[message.Compact](c, testMethods, []byte(payload), DecodeOptions{})
		require.NoError(t, err)
		assert.Equal(t, add{}, req.Method)
	}
}

func TestDecodeRequestAllowUnknownFields(t *testing.T) {
	payload := []byte(`{"i":1,"m":"hello","p":{"name":"x","age":3},"trace":"abc"}`)
	req, err := DecodeRequest[message.Compact](&JSONCodec{}, testMethods, payload, DecodeOptions{AllowUnknownFields: true})
	require.NoError(t, err)
	assert.Equal(t, hello{Name: "x"}, req.Method)
}

func TestDecodeRequestBinaryErrors(t *testing.T) {
	for _, c := range []Codec{&MsgpackCodec{}, &CBORCodec{}} {
		t.Run(c.Type().String(), func(t *testing.T) {
			for _, id := range []any{-1, 1.5, "1", uint64(1) << 32} {
				data, err := c.EncodeObject([]Field{{Name: "i", Value: id}, {Name: "m", Value: "ping"}})
				require.NoError(t, err)
				_, err = DecodeRequest[message.Compact](c, testMethods, data, DecodeOptions{})
				assert.ErrorIs(t, err, ErrIDType, "id %#v", id)
			}

			data, err := c.EncodeObject([]Field{{Name: "i", Value: 1}, {Name: "m", Value: "nope"}})
			require.NoError(t, err)
			_, err = DecodeRequest[message.Compact](c, testMethods, data, DecodeOptions{})
			assert.ErrorIs(t, err, ErrUnknownMethod)

			data, err = c.EncodeObject([]Field{
				{Name: "i", Value: 1},
				{Name: "m", Value: "add"},
				{Name: "p", Value: map[string]any{"a": 1, "c": 2}},
			})
			require.NoError(t, err)
			_, err = DecodeRequest[message.Compact](c, testMethods, data, DecodeOptions{})
			assert.ErrorIs(t, err, ErrInvalidParams)

			req, err := DecodeRequest[message.Compact](c, testMethods, data, DecodeOptions{AllowUnknownFields: true})
			require.NoError(t, err)
			assert.Equal(t, add{A: 1}, req.Method)
		})
	}
}

func TestDecodeResponseErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		kind    error
	}{
		{"missing id", `{"r":"x"}`, ErrMissingField},
		{"null id", `{"i":null,"r":"x"}`, ErrIDType},
		{"negative id", `{"i":-3,"r":"x"}`, ErrIDType},
		{"result and error", `{"i":1,"r":"x","e":{"code":1,"message":"m"}}`, ErrUnexpectedField},
		{"neither result nor error", `{"i":1}`, ErrMissingField},
		{"no result shape", `{"i":1,"r":[1,2]}`, ErrNoResultVariant},
		{"result with extra field", `{"i":1,"r":{"sum":1,"avg":2}}`, ErrNoResultVariant},
		{"error not an object", `{"i":1,"e":"boom"}`, ErrInvalidField},
		{"error without code", `{"i":1,"e":{}}`, ErrMissingField},
		{"error with only a message", `{"i":1,"e":{"message":"m"}}`, ErrMissingField},
		{"duplicate id", `{"i":1,"i":2,"r":"x"}`, ErrMalformed},
		{"unexpected member", `{"i":1,"r":"x","m":"hello"}`, ErrUnexpectedField},
		{"batch", `[{"i":1,"r":"x"}]`, ErrBatchUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeResponse[message.Compact](&JSONCodec{}, testResults, []byte(tt.payload), DecodeOptions{})
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestDecodeResponseNullErrorIsAbsent(t *testing.T) {
	resp, err := DecodeResponse[message.Compact](&JSONCodec{}, testResults, []byte(`{"i":1,"r":"ok","e":null}`), DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Result)
	assert.Nil(t, resp.Error)
}

func TestErrorMessageBound(t *testing.T) {
	long := strings.Repeat("é", 100) // 200 bytes

	for _, c := range allCodecs() {
		t.Run(c.Type().String(), func(t *testing.T) {
			// Encoding truncates even an error built without NewError.
			resp := message.NewErrorResponse[any](1, &message.Error{Code: message.InternalError, Message: long})
			data, err := EncodeResponse[message.Compact](c, resp)
			require.NoError(t, err)

			got, err := DecodeResponse[message.Compact](c, testResults, data, DecodeOptions{})
			require.NoError(t, err)
			assert.LessOrEqual(t, len(got.Error.Message), message.MaxMessageLen)
			assert.True(t, strings.HasPrefix(long, got.Error.Message))
			assert.True(t, utf8.ValidString(got.Error.Message))

			// A peer that ignores the bound is truncated on decode.
			data, err = c.EncodeObject([]Field{
				{Name: "i", Value: 1},
				{Name: "e", Value: map[string]any{"code": -32000, "message": long}},
			})
			require.NoError(t, err)
			got, err = DecodeResponse[message.Compact](c, testResults, data, DecodeOptions{})
			require.NoError(t, err)
			assert.Equal(t, message.Truncate(long), got.Error.Message)
		})
	}
}

func TestModeIsolation(t *testing.T) {
	for _, c := range allCodecs() {
		t.Run(c.Type().String(), func(t *testing.T) {
			standard, err := EncodeRequest[message.Standard](c, message.NewRequest[testMethod](1, ping{}))
			require.NoError(t, err)
			_, err = DecodeRequest[message.Compact](c, testMethods, standard, DecodeOptions{})
			assert.Error(t, err)

			compact, err := EncodeRequest[message.Compact](c, message.NewRequest[testMethod](1, ping{}))
			require.NoError(t, err)
			_, err = DecodeRequest[message.Standard](c, testMethods, compact, DecodeOptions{})
			assert.ErrorIs(t, err, ErrVersionMismatch)

			resp, err := EncodeResponse[message.Standard](c, message.NewResult[any](1, "x"))
			require.NoError(t, err)
			_, err = DecodeResponse[message.Compact](c, testResults, resp, DecodeOptions{})
			assert.Error(t, err)
		})
	}
}

func TestRecoverID(t *testing.T) {
	c := &JSONCodec{}
	tests := []struct {
		payload string
		id      message.RequestID
		ok      bool
	}{
		{`{"i":7,"m":"nope"}`, 7, true},
		{`{"i":7,"m":"hello","p":{"name":1}}`, 7, true},
		{`{"i":7,"x":1}`, 7, true},
		{`{"m":"nope"}`, 0, false},
		{`{"i":null,"m":"nope"}`, 0, false},
		{`{"i":"7","m":"nope"}`, 0, false},
		{`{"i":7,"m":"hello"`, 0, false},
		{`[{"i":7}]`, 0, false},
	}
	for _, tt := range tests {
		id, ok := RecoverID[message.Compact](c, []byte(tt.payload))
		assert.Equal(t, tt.ok, ok, tt.payload)
		assert.Equal(t, tt.id, id, tt.payload)
	}

	id, ok := RecoverID[message.Standard](c, []byte(`{"jsonrpc":"1.0","id":3,"method":"ping"}`))
	assert.True(t, ok)
	assert.Equal(t, message.RequestID(3), id)
}
