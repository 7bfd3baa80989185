package mailbox

import (
	"errors"
	"fmt"
)

// ConnectError indicates the TLS connection to the IMAP server could not
// be established.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// AuthError indicates the server rejected the supplied credentials.
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Username, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error in its chain) is an
// AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// MailboxError indicates a select or search command failed against the
// mailbox.
type MailboxError struct {
	Mailbox string
	Op      string
	Err     error
}

func (e *MailboxError) Error() string {
	return fmt.Sprintf("%s on mailbox %q: %v", e.Op, e.Mailbox, e.Err)
}

func (e *MailboxError) Unwrap() error { return e.Err }

// FetchError indicates a message body could not be retrieved. It signals
// session trouble, not message trouble, and ends the run that hit it.
type FetchError struct {
	Handle Handle
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching message %d: %v", e.Handle, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FlagError indicates a flag mutation on a message failed.
type FlagError struct {
	Handle Handle
	Err    error
}

func (e *FlagError) Error() string {
	return fmt.Sprintf("flagging message %d: %v", e.Handle, e.Err)
}

func (e *FlagError) Unwrap() error { return e.Err }
