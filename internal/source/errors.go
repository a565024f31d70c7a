package source

import (
	"errors"
	"strings"

	"github.com/emersion/go-imap/v2"
)

// authError wraps an error a backend has already recognized as an
// authentication failure.
type authError struct{ err error }

func (e *authError) Error() string { return "auth: " + e.err.Error() }
func (e *authError) Unwrap() error { return e.err }

// AsAuthError marks err as authentication-class.
func AsAuthError(err error) error {
	if err == nil {
		return nil
	}
	return &authError{err: err}
}

// KindFor classifies a fetch error. The update loop's retry/terminate
// policy is a pure function of the returned kind.
func KindFor(err error) ErrorKind {
	if err == nil {
		return KindTransient
	}

	var ae *authError
	if errors.As(err, &ae) {
		return KindAuth
	}

	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		if imapErr.Code == imap.ResponseCodeAuthenticationFailed || imapErr.Code == imap.ResponseCodeAuthorizationFailed {
			return KindAuth
		}
		return KindTransient
	}

	// CalDAV servers that reject credentials before go-webdav can type the
	// response surface as plain status-line errors.
	msg := err.Error()
	if strings.Contains(msg, "401 ") || strings.Contains(msg, "403 ") ||
		strings.Contains(msg, "Unauthorized") || strings.Contains(msg, "Forbidden") {
		return KindAuth
	}
	return KindTransient
}
