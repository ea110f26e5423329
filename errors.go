package ftpq

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// InvalidArgumentError reports an argument value the engine cannot accept,
// such as an unknown security mode name.
type InvalidArgumentError struct {
	// Param is the name of the offending argument
	Param string

	// Value is the rejected value
	Value string

	// Reason explains what was expected
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("ftpq: invalid %s %q: %s", e.Param, e.Value, e.Reason)
}

// InvalidStateError reports an operation attempted while the session was in
// a state that does not permit it, such as changing the security mode after
// connecting.
type InvalidStateError struct {
	// Op is the operation that was attempted
	Op string

	// State is the session state at the time of the attempt
	State SessionState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("ftpq: %s not allowed while %s", e.Op, e.State)
}

// ConnectError reports a failed connection attempt. Code and Reply carry the
// server's rejection when one was received; Err carries the underlying
// network cause otherwise.
type ConnectError struct {
	// Addr is the address passed to Connect
	Addr string

	// Code is the server reply code, 0 when the failure happened below the
	// protocol (DNS, TCP, TLS)
	Code int

	// Reply is the raw server reply text, empty when Code is 0
	Reply string

	// Err is the underlying cause
	Err error
}

func (e *ConnectError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("ftpq: connect %s: server replied %d %s", e.Addr, e.Code, e.Reply)
	}
	return fmt.Sprintf("ftpq: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ProtocolError reports a server reply that could not be parsed as FTP.
type ProtocolError struct {
	// Line is the offending wire line
	Line string

	// Reason describes the violation
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ftpq: malformed reply %q: %s", e.Line, e.Reason)
}

// CommandError reports a command the server rejected with a non-success
// reply code.
type CommandError struct {
	// Command is the verb that was sent (e.g. "MKD")
	Command string

	// Code is the three-digit reply code
	Code int

	// Message is the server's reply text
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("ftpq: %s failed: %s (code %d)", e.Command, e.Message, e.Code)
}

// IsTemporary reports whether the rejection is a transient 4xx condition
// that may succeed on retry.
func (e *CommandError) IsTemporary() bool { return e.Code >= 400 && e.Code < 500 }

// IsPermanent reports whether the rejection is a permanent 5xx condition.
func (e *CommandError) IsPermanent() bool { return e.Code >= 500 && e.Code < 600 }

// TimeoutError reports that the server did not reply within the configured
// per-reply bound.
type TimeoutError struct {
	// Op is the operation that was waiting
	Op string

	// Wait is the bound that expired
	Wait time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("ftpq: %s: no reply within %s", e.Op, e.Wait)
}

// Timeout reports true so the error satisfies net.Error style checks.
func (e *TimeoutError) Timeout() bool { return true }

// ConnectionLostError reports that the control connection closed or broke
// while an operation was using it.
type ConnectionLostError struct {
	Err error
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("ftpq: control connection lost: %v", e.Err)
}

func (e *ConnectionLostError) Unwrap() error { return e.Err }

// NotFoundError reports a path the server says does not exist.
type NotFoundError struct {
	Path    string
	Code    int
	Message string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("ftpq: %s: not found (%d %s)", e.Path, e.Code, e.Message)
}

// PermissionError reports a path the server refuses access to.
type PermissionError struct {
	Path    string
	Code    int
	Message string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("ftpq: %s: permission denied (%d %s)", e.Path, e.Code, e.Message)
}

// ParseError reports input the engine could not make sense of: a
// non-empty directory listing that produced no entries at all, a malformed
// MLST entry, or a bad entry timestamp. Individual unparseable listing
// lines are skipped silently; only a fully unreadable listing surfaces as
// an error.
type ParseError struct {
	// What names the input kind ("directory listing", "machine listing")
	What string

	// Sample is the first raw line, for diagnosis
	Sample string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ftpq: cannot parse %s (first line %q)", e.What, e.Sample)
}

// TransferError reports a failed upload or download. Bytes already written
// before the failure are left in place; the engine never rolls back or
// retries on its own.
type TransferError struct {
	Direction  TransferDirection
	LocalPath  string
	RemotePath string
	Err        error
}

func (e *TransferError) Error() string {
	if e.Direction == DirectionUpload {
		return fmt.Sprintf("ftpq: upload %s to %s: %v", e.LocalPath, e.RemotePath, e.Err)
	}
	return fmt.Sprintf("ftpq: download %s to %s: %v", e.RemotePath, e.LocalPath, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// CancelledError reports an operation aborted by Cancel, Disconnect, or its
// own context.
type CancelledError struct {
	// Op is the cancelled operation
	Op string

	// TaskID identifies the transfer task, empty for non-transfer operations
	TaskID string
}

func (e *CancelledError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("ftpq: %s cancelled (task %s)", e.Op, e.TaskID)
	}
	return fmt.Sprintf("ftpq: %s cancelled", e.Op)
}

// permissionWords are the fragments of 550 replies that indicate a refusal
// rather than a missing path. Servers use 550 for both and the wording is
// the only signal; unknown wording counts as not found.
var permissionWords = []string{
	"permission",
	"denied",
	"access",
	"prohibited",
	"not allowed",
}

// classify550 maps a 550-class rejection onto the not-found or permission
// error families based on the server's wording.
func classify550(path string, code int, message string) error {
	lower := strings.ToLower(message)
	for _, w := range permissionWords {
		if strings.Contains(lower, w) {
			return &PermissionError{Path: path, Code: code, Message: message}
		}
	}
	return &NotFoundError{Path: path, Code: code, Message: message}
}

// pathError rewrites a command rejection into the typed error for the path
// it concerned. Non-550 rejections pass through as CommandError.
func pathError(path string, err error) error {
	if err == nil {
		return nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == 550 {
		return classify550(path, cmdErr.Code, cmdErr.Message)
	}
	return err
}

// wireError types a transport failure on the control connection: deadline
// expiry becomes TimeoutError, everything else ConnectionLostError.
func wireError(op string, wait time.Duration, err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &TimeoutError{Op: op, Wait: wait}
	}
	return &ConnectionLostError{Err: err}
}
