package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfiguration is returned when a client is built from invalid settings,
	// typically an empty api key.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrNetwork wraps transport level failures.
	ErrNetwork = errors.New("network error")

	// ErrProtocol means the remote answered with a non success status.
	ErrProtocol = errors.New("protocol error")

	ErrNotFound = errors.New("not found")

	// ErrDeserialization means a response or stored value could not be decoded.
	ErrDeserialization = errors.New("deserialization error")

	ErrInvalidPayload = errors.New("invalid payload")

	ErrInvalidKey = errors.New("invalid key")
)

// ProtocolError carries the status of a failed remote call. It matches
// ErrProtocol, and ErrNotFound for 404 responses.
type ProtocolError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("%s %s: http status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}

	return msg
}

func (e *ProtocolError) Is(target error) bool {
	switch target {
	case ErrProtocol:
		return true
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	default:
		return false
	}
}

func IsErrNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
