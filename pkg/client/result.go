package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Result is the normalized outcome of Client.Do. It always has one of
// two shapes:
//
//   - success: Body holds the decoded JSON response, StatusCode is the
//     body's "statusCode" (0 when the body has none) and Message its
//     "message";
//   - failure: Body is nil, StatusCode/Message were extracted from the
//     last error's payload (500 and DefaultErrorMessage when it has
//     none) and Err holds that error.
//
// The backend signals success with statusCode 200 in the body; callers
// branch on OK. A 2xx reply without it, such as a proxy page, is not OK.
type Result struct {
	StatusCode int
	Message    string
	Body       json.RawMessage
	Err        error

	// HTTPStatus is the HTTP status of the last response, 0 when none
	// arrived.
	HTTPStatus int

	// Attempts is the number of attempts made.
	Attempts int
}

// OK reports whether the backend signalled success in the body.
func (r *Result) OK() bool {
	return r.Body != nil && r.StatusCode == http.StatusOK
}

// FromServer reports whether the result carries an answer from the
// backend, as opposed to a timeout or transport failure.
func (r *Result) FromServer() bool {
	if r.Body != nil {
		return true
	}
	var reqErr *RequestError
	return errors.As(r.Err, &reqErr) && reqErr.ErrorClass == ErrorClassStatus
}

// Decode unmarshals the whole body into v.
func (r *Result) Decode(v any) error {
	if r.Body == nil {
		return ErrNoBody
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// Field unmarshals the top-level body field name into v. It reports
// false when the body is not an object or lacks the field.
func (r *Result) Field(name string, v any) (bool, error) {
	if r.Body == nil {
		return false, ErrNoBody
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r.Body, &fields); err != nil {
		return false, nil
	}
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode field %q: %w", name, err)
	}
	return true, nil
}

// JSON renders the result in its wire shape: the body on success, or
// {"message", "statusCode"} on failure.
func (r *Result) JSON() json.RawMessage {
	if r.Body != nil {
		return r.Body
	}
	b, _ := json.Marshal(struct {
		Message    string `json:"message"`
		StatusCode int    `json:"statusCode"`
	}{r.Message, r.StatusCode})
	return b
}

// decodeBody returns body when it is valid JSON, otherwise the synthetic
// payload {"message": <body text>} and false.
func decodeBody(body []byte) (json.RawMessage, bool) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), true
	}
	synthetic, _ := json.Marshal(map[string]string{"message": string(body)})
	return synthetic, false
}

// envelope holds the conventional fields of a backend response.
type envelope struct {
	StatusCode    int
	HasStatusCode bool
	Message       string
}

// readEnvelope extracts statusCode and message from an object payload.
// Fields of the wrong type are ignored.
func readEnvelope(payload []byte) envelope {
	var env envelope

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return env
	}
	if raw, ok := fields["statusCode"]; ok {
		if err := json.Unmarshal(raw, &env.StatusCode); err == nil {
			env.HasStatusCode = true
		}
	}
	if raw, ok := fields["message"]; ok {
		_ = json.Unmarshal(raw, &env.Message)
	}
	return env
}

// successResult builds the success shape for a 2xx response. The body's
// statusCode is passed through verbatim.
func successResult(httpStatus int, payload json.RawMessage) *Result {
	env := readEnvelope(payload)
	return &Result{
		StatusCode: env.StatusCode,
		Message:    env.Message,
		Body:       payload,
		HTTPStatus: httpStatus,
	}
}

// failureResult extracts the best-effort {message, statusCode} from the
// last attempt error. A message that is itself a JSON-encoded error is
// unwrapped once.
func failureResult(err error) *Result {
	res := &Result{
		StatusCode: http.StatusInternalServerError,
		Message:    DefaultErrorMessage,
		Err:        err,
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return res
	}
	res.HTTPStatus = reqErr.StatusCode
	if reqErr.Payload == nil {
		return res
	}

	env := readEnvelope(reqErr.Payload)
	if nested := strings.TrimSpace(env.Message); strings.HasPrefix(nested, "{") {
		inner := readEnvelope([]byte(nested))
		if inner.HasStatusCode {
			env.StatusCode, env.HasStatusCode = inner.StatusCode, true
		}
		if inner.Message != "" {
			env.Message = inner.Message
		}
	}

	if env.HasStatusCode && env.StatusCode != 0 {
		res.StatusCode = env.StatusCode
	}
	if env.Message != "" {
		res.Message = env.Message
	}
	return res
}
