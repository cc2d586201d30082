package runtime

import (
	"context"
	"encoding/json"
	"fmt"
)

// ErrorKind classifies a failed tool call.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation_error"
	KindNotFound   ErrorKind = "not_found"
	KindDenied     ErrorKind = "denied"
	KindInternal   ErrorKind = "internal_error"
)

// Result is the outcome of a single tool call: either a payload or an error
// kind with a message.
type Result struct {
	Tool    string    `json:"-"`
	Success bool      `json:"success"`
	Payload any       `json:"data,omitempty"`
	Kind    ErrorKind `json:"error_kind,omitempty"`
	Error   string    `json:"error,omitempty"`
}

func Succeeded(tool string, payload any) Result {
	return Result{Tool: tool, Success: true, Payload: payload}
}

func Failed(tool string, kind ErrorKind, msg string) Result {
	return Result{Tool: tool, Kind: kind, Error: msg}
}

// JSON renders the result for a tool message sent back to the model.
func (r Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error_kind":%q,"error":%q}`, KindInternal, err.Error())
	}
	return string(data)
}

// ValidationError reports user-correctable input problems.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Invalid builds a ValidationError.
func Invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type sourceKey struct{}

// WithSource tags ctx with the channel a call originates from ("api",
// "telegram", "routine", ...). Guards and observers read it back.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the channel set by WithSource, or "unknown".
func SourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "unknown"
}
