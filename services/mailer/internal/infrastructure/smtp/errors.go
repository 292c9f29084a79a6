package smtp

import (
	"errors"
	"fmt"
	"net/textproto"
)

var (
	// ErrTimeout means the overall send bound expired before the relay
	// answered. The session that was in flight is discarded.
	ErrTimeout = errors.New("smtp delivery timed out")
	// ErrRelayUnavailable is returned while the circuit breaker is open.
	ErrRelayUnavailable = errors.New("smtp relay unavailable")
	ErrConfig           = errors.New("invalid smtp configuration")
)

// RelayError is a negative reply from the relay to a specific command.
type RelayError struct {
	Command string
	Code    int
	Message string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("smtp %s rejected: %d %s", e.Command, e.Code, e.Message)
}

// Temporary reports a 4xx reply.
func (e *RelayError) Temporary() bool {
	return e.Code >= 400 && e.Code < 500
}

// commandError turns a protocol reply into *RelayError and leaves any other
// error (network, TLS, EOF) wrapped as is.
func commandError(command string, err error) error {
	if err == nil {
		return nil
	}

	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return &RelayError{Command: command, Code: tpErr.Code, Message: tpErr.Msg}
	}

	return fmt.Errorf("smtp %s: %w", command, err)
}

// isRelayReply reports whether the session is still in a known protocol
// state after err.
func isRelayReply(err error) bool {
	var relayErr *RelayError
	return errors.As(err, &relayErr)
}
