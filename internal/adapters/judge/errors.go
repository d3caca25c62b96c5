package judge

import "errors"

var (
	// ErrMissingAPIKey is returned when the roster entry's API key
	// environment variable is unset or empty.
	ErrMissingAPIKey = errors.New("judge: missing api key")
	// ErrEmptyModel is returned when a roster entry has no model name.
	ErrEmptyModel = errors.New("judge: empty model name")
)
