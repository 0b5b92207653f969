package domain

import "errors"

var (
	// ErrConfiguration marks missing credentials, invalid settings or an empty request batch.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransport marks network or API failures talking to the completion service.
	ErrTransport = errors.New("transport error")
)
