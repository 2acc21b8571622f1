package api

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidCredentials is returned by Token when the backend rejects
	// the username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionExpired is returned once a 401 could not be resolved by
	// refreshing the access token. The local session is torn down before
	// this error is surfaced.
	ErrSessionExpired = errors.New("session expired")
	// ErrNothingToRefresh is returned by the session manager when no
	// refresh token is stored.
	ErrNothingToRefresh = errors.New("nothing to refresh")
)

// StatusError is any non-2xx response that the client does not resolve
// itself. The body is kept verbatim so callers can show backend messages.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Body)
}

// IsStatus reports whether err is a StatusError with the given status code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
