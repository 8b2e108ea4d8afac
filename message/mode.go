package message

// Version is the protocol version literal carried by standard-mode envelopes.
const Version = "2.0"

// FieldNames holds the envelope member names used by a Mode.
type FieldNames struct {
	Version string
	ID      string
	Method  string
	Params  string
	Result  string
	Error   string
}

// Mode fixes envelope field names and version handling. It is only ever used as a type
// parameter, so the choice is made when the client or server type is instantiated.
type Mode interface {
	// Fields returns the envelope member names.
	Fields() FieldNames
	// RequiresVersion reports whether the version member must be present and equal Version.
	// When false, the version member is never emitted and its content is never checked.
	RequiresVersion() bool
}

// Compact renames envelope members to single letters and ignores the version member.
type Compact struct{}

// Standard uses the JSON-RPC 2.0 member names and enforces "jsonrpc":"2.0".
type Standard struct{}

var (
	compactFields = FieldNames{
		Version: "jsonrpc",
		ID:      "i",
		Method:  "m",
		Params:  "p",
		Result:  "r",
		Error:   "e",
	}
	standardFields = FieldNames{
		Version: "jsonrpc",
		ID:      "id",
		Method:  "method",
		Params:  "params",
		Result:  "result",
		Error:   "error",
	}
)

func (Compact) Fields() FieldNames    { return compactFields }
func (Compact) RequiresVersion() bool { return false }

func (Standard) Fields() FieldNames    { return standardFields }
func (Standard) RequiresVersion() bool { return true }

// FieldsOf returns the member names of mode Md.
func FieldsOf[Md Mode]() FieldNames {
	var md Md
	return md.Fields()
}

// VersionRequired reports whether mode Md enforces the version member.
func VersionRequired[Md Mode]() bool {
	var md Md
	return md.RequiresVersion()
}
