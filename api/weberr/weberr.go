// Package weberr decorates errors with the extra behavior the web layer
// needs: a response body and status code to answer the client with, and
// structured fields to log. Decorations compose and unwrap transparently, so
// errors.Is and errors.As keep working on the underlying error.
package weberr

// Opt decorates an error with one behavior.
type Opt func(error) error

// Wrap applies the given decorations to err.
func Wrap(err error, opts ...Opt) error {
	for _, opt := range opts {
		err = opt(err)
	}
	return err
}

// WithResponse attaches the body and status the client should receive.
func WithResponse(body interface{}, status int) Opt {
	return func(err error) error {
		return &responseError{error: err, body: body, status: status}
	}
}

// WithFields attaches structured logging fields.
func WithFields(fields map[string]interface{}) Opt {
	return func(err error) error {
		return &fieldsError{error: err, fields: fields}
	}
}
