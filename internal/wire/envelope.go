package wire

import (
	"encoding/json"
	"fmt"

	"github.com/mcpprobe/mcpprobe/internal/probeerr"
)

// Version is the fixed protocol tag carried by every envelope.
const Version = "2.0"

// Kind classifies a decoded envelope.
type Kind int

const (
	// KindMalformed marks an envelope that is neither a notification nor a
	// response (no method and no id).
	KindMalformed Kind = iota

	// KindNotification marks an envelope with a method and no id.
	KindNotification

	// KindResponse marks an envelope with an id, regardless of method.
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "malformed"
	}
}

// ErrorObject is the error member of a failed response.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Envelope is the unit exchanged on the channel.
//
// ID is a pointer so that absence (notification) is distinguishable from a
// literal zero id, which the handshake uses by convention.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`

	// Raw preserves the line the envelope was decoded from, for error
	// reporting. Not serialized.
	Raw []byte `json:"-"`
}

// Kind applies the classification rule: presence of a method with no id is
// a notification; presence of an id is a response whether or not a method
// is also present.
func (e *Envelope) Kind() Kind {
	switch {
	case e.ID != nil:
		return KindResponse
	case e.Method != "":
		return KindNotification
	default:
		return KindMalformed
	}
}

// RemoteError converts a populated error member into a probeerr.RemoteError.
// Returns nil for successful responses.
func (e *Envelope) RemoteError() *probeerr.RemoteError {
	if e.Error == nil {
		return nil
	}

	return &probeerr.RemoteError{
		Code:    e.Error.Code,
		Message: e.Error.Message,
		Data:    e.Error.Data,
	}
}

// Decode parses one record-delimited line into an Envelope and verifies it
// matches one of the two recognized shapes. A line that fails to parse, or
// an envelope that is neither notification nor response, yields a
// DecodeError carrying the offending raw text.
func Decode(line []byte) (*Envelope, error) {
	var env Envelope

	if err := json.Unmarshal(line, &env); err != nil {
		return nil, &probeerr.DecodeError{
			RawLine: string(line),
			Err:     err,
		}
	}

	env.Raw = append([]byte(nil), line...)

	if env.Kind() == KindMalformed {
		return nil, &probeerr.DecodeError{
			RawLine: string(line),
			Err:     fmt.Errorf("envelope has neither method nor id"),
		}
	}

	return &env, nil
}

// EncodeRequest serializes a request envelope to its canonical textual form
// followed by the record delimiter. Pure function, no I/O.
func EncodeRequest(method string, params any, id int64) ([]byte, error) {
	return encode(&request{
		JSONRPC: Version,
		ID:      &id,
		Method:  method,
	}, method, params)
}

// EncodeNotification serializes an id-less notification envelope.
func EncodeNotification(method string, params any) ([]byte, error) {
	return encode(&request{
		JSONRPC: Version,
		Method:  method,
	}, method, params)
}

// request is the outgoing envelope shape. Params is typed any so callers can
// pass structs; it is omitted entirely when nil.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

func encode(req *request, method string, params any) ([]byte, error) {
	if params != nil {
		req.Params = params
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, &probeerr.EncodingError{Method: method, Err: err}
	}

	return append(data, '\n'), nil
}
