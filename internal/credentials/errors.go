package credentials

import "errors"

var (
	// ErrNoCredential indicates no credential record exists for the web id.
	ErrNoCredential = errors.New("no credentials found for web id")

	// ErrNotReady indicates the process-wide application session has not
	// completed its startup login, or the login failed.
	ErrNotReady = errors.New("application session is not ready")
)
