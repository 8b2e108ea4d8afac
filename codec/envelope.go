package codec

import (
	"errors"
	"fmt"
	"sort"

	"mini-jsonrpc/message"
)

// DecodeOptions tunes envelope validation. The zero value is strict.
type DecodeOptions struct {
	// AllowUnknownFields accepts envelope members and params fields the receiver does not
	// know about. Result shapes are always decoded strictly, otherwise the first shape
	// would accept every object.
	AllowUnknownFields bool
}

// EncodeRequest encodes req under mode Md.
func EncodeRequest[Md message.Mode, M message.Method](c Codec, req message.Request[M]) ([]byte, error) {
	if any(req.Method) == nil {
		return nil, ErrNilMethod
	}
	names := message.FieldsOf[Md]()

	fields := make([]Field, 0, 4)
	if message.VersionRequired[Md]() {
		fields = append(fields, Field{Name: names.Version, Value: message.Version})
	}
	if req.ID != nil {
		fields = append(fields, Field{Name: names.ID, Value: uint32(*req.ID)})
	}
	fields = append(fields,
		Field{Name: names.Method, Value: req.Method.MethodName()},
		Field{Name: names.Params, Value: req.Method},
	)
	return c.EncodeObject(fields)
}

// EncodeResponse encodes resp under mode Md. The error message is truncated to
// message.MaxMessageLen bytes on the way out.
func EncodeResponse[Md message.Mode, R any](c Codec, resp *message.Response[R]) ([]byte, error) {
	names := message.FieldsOf[Md]()

	fields := make([]Field, 0, 3)
	if message.VersionRequired[Md]() {
		fields = append(fields, Field{Name: names.Version, Value: message.Version})
	}
	fields = append(fields, Field{Name: names.ID, Value: uint32(resp.ID)})
	if resp.Error != nil {
		fields = append(fields, Field{Name: names.Error, Value: resp.Error.Bounded()})
	} else {
		fields = append(fields, Field{Name: names.Result, Value: resp.Result})
	}
	return c.EncodeObject(fields)
}

// DecodeRequest decodes a request under mode Md, resolving its method through methods.
// Every failure is a *DecodeError.
func DecodeRequest[Md message.Mode, M message.Method](c Codec, methods *message.MethodSet[M], data []byte, opts DecodeOptions) (message.Request[M], error) {
	var req message.Request[M]
	names := message.FieldsOf[Md]()

	obj, err := c.DecodeObject(data)
	if err != nil {
		return req, err
	}
	if err := checkVersion[Md](c, obj); err != nil {
		return req, err
	}
	if !opts.AllowUnknownFields {
		if err := checkMembers(obj, names.Version, names.ID, names.Method, names.Params); err != nil {
			return req, err
		}
	}

	if raw, ok := obj[names.ID]; ok && !c.IsNull(raw) {
		id, err := c.DecodeID(raw)
		if err != nil {
			return req, decodeErr(ErrIDType, names.ID, err)
		}
		rid := message.RequestID(id)
		req.ID = &rid
	}

	rawTag, ok := obj[names.Method]
	if !ok {
		return req, decodeErr(ErrMissingField, names.Method, nil)
	}
	var tag string
	if err := c.Unmarshal(rawTag, &tag, true); err != nil {
		return req, decodeErr(ErrInvalidField, names.Method, err)
	}
	variant, ok := methods.Lookup(tag)
	if !ok {
		return req, decodeErr(ErrUnknownMethod, names.Method, fmt.Errorf("%q", message.Truncate(tag)))
	}

	var params message.Unmarshaler
	if raw, ok := obj[names.Params]; ok && !c.IsNull(raw) {
		strict := !opts.AllowUnknownFields
		params = func(v any) error { return c.Unmarshal(raw, v, strict) }
	}
	method, err := variant.Decode(params)
	if err != nil {
		return req, decodeErr(ErrInvalidParams, names.Params, err)
	}
	req.Method = method
	return req, nil
}

// DecodeResponse decodes a response under mode Md, matching its result against results.
// Every failure is a *DecodeError.
func DecodeResponse[Md message.Mode, R any](c Codec, results *message.ResultSet[R], data []byte, opts DecodeOptions) (*message.Response[R], error) {
	names := message.FieldsOf[Md]()

	obj, err := c.DecodeObject(data)
	if err != nil {
		return nil, err
	}
	if err := checkVersion[Md](c, obj); err != nil {
		return nil, err
	}
	if !opts.AllowUnknownFields {
		if err := checkMembers(obj, names.Version, names.ID, names.Result, names.Error); err != nil {
			return nil, err
		}
	}

	rawID, ok := obj[names.ID]
	if !ok {
		return nil, decodeErr(ErrMissingField, names.ID, nil)
	}
	if c.IsNull(rawID) {
		return nil, decodeErr(ErrIDType, names.ID, errors.New("null id"))
	}
	id, err := c.DecodeID(rawID)
	if err != nil {
		return nil, decodeErr(ErrIDType, names.ID, err)
	}
	resp := &message.Response[R]{ID: message.RequestID(id)}

	rawResult, hasResult := obj[names.Result]
	rawErr, hasErr := obj[names.Error]
	hasErr = hasErr && !c.IsNull(rawErr)

	switch {
	case hasResult && hasErr:
		return nil, decodeErr(ErrUnexpectedField, names.Error, errors.New("both result and error present"))
	case !hasResult && !hasErr:
		return nil, decodeErr(ErrMissingField, names.Result, nil)
	case hasErr:
		var rpcErr message.Error
		if err := c.Unmarshal(rawErr, &rpcErr, !opts.AllowUnknownFields); err != nil {
			return nil, decodeErr(ErrInvalidField, names.Error, err)
		}
		var code struct {
			Code *message.ErrorCode `json:"code"`
		}
		if err := c.Unmarshal(rawErr, &code, false); err != nil || code.Code == nil {
			return nil, decodeErr(ErrMissingField, names.Error, errors.New("error object has no code"))
		}
		resp.Error = rpcErr.Bounded()
	default:
		result, err := results.Decode(func(v any) error { return c.Unmarshal(rawResult, v, true) })
		if err != nil {
			return nil, decodeErr(ErrNoResultVariant, names.Result, err)
		}
		resp.Result = result
	}
	return resp, nil
}

// RecoverID extracts the request id from a payload that failed to decode, so the server
// can still answer it. It reports false when the payload is not an object or carries no
// usable id.
func RecoverID[Md message.Mode](c Codec, data []byte) (message.RequestID, bool) {
	names := message.FieldsOf[Md]()

	obj, err := c.DecodeObject(data)
	if err != nil {
		return 0, false
	}
	raw, ok := obj[names.ID]
	if !ok || c.IsNull(raw) {
		return 0, false
	}
	id, err := c.DecodeID(raw)
	if err != nil {
		return 0, false
	}
	return message.RequestID(id), true
}

func checkVersion[Md message.Mode](c Codec, obj Object) error {
	if !message.VersionRequired[Md]() {
		return nil
	}
	name := message.FieldsOf[Md]().Version
	raw, ok := obj[name]
	if !ok {
		return decodeErr(ErrVersionMismatch, name, errors.New("missing"))
	}
	var v string
	if err := c.Unmarshal(raw, &v, true); err != nil {
		return decodeErr(ErrVersionMismatch, name, err)
	}
	if v != message.Version {
		return decodeErr(ErrVersionMismatch, name, fmt.Errorf("got %q", message.Truncate(v)))
	}
	return nil
}

// checkMembers rejects the first member, in sorted order, that is not in allowed.
func checkMembers(obj Object, allowed ...string) error {
	var unexpected []string
	for name := range obj {
		known := false
		for _, a := range allowed {
			if name == a {
				known = true
				break
			}
		}
		if !known {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) == 0 {
		return nil
	}
	sort.Strings(unexpected)
	return decodeErr(ErrUnexpectedField, message.Truncate(unexpected[0]), nil)
}
