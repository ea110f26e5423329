package ftpq

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Response represents one logical FTP server reply.
type Response struct {
	// Code is the three-digit reply code (e.g. 220, 550)
	Code int

	// Message is the human-readable text. For multi-line replies the
	// interior lines are joined with newlines.
	Message string

	// Lines contains every raw line of the reply
	Lines []string
}

// Is2xx reports whether the reply signals success.
func (r *Response) Is2xx() bool { return r.Code >= 200 && r.Code < 300 }

// Is3xx reports whether the reply asks for the next command of a sequence.
func (r *Response) Is3xx() bool { return r.Code >= 300 && r.Code < 400 }

// Is4xx reports whether the reply signals a transient failure.
func (r *Response) Is4xx() bool { return r.Code >= 400 && r.Code < 500 }

// Is5xx reports whether the reply signals a permanent failure.
func (r *Response) Is5xx() bool { return r.Code >= 500 && r.Code < 600 }

// String returns the full reply as received, one line per element.
func (r *Response) String() string {
	return strings.Join(r.Lines, "\n")
}

// readResponse reads one logical reply from the control channel.
//
// Single-line form: "220 Ready\r\n". Multi-line form opens with "220-" and
// is terminated by a line carrying the same code followed by a space:
//
//	"220-Welcome\r\n"
//	"220-Second line\r\n"
//	"220 Ready\r\n"
//
// Interior lines starting with a space (RFC 2389 feature lists) pass
// through verbatim.
func readResponse(r *bufio.Reader) (*Response, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}

	line = strings.TrimRight(line, "\r\n")
	if len(line) < 4 {
		return nil, &ProtocolError{Line: line, Reason: "reply shorter than code and separator"}
	}

	code, err := strconv.Atoi(line[0:3])
	if err != nil {
		return nil, &ProtocolError{Line: line, Reason: "reply code is not numeric"}
	}

	lines := []string{line}

	if line[3] == ' ' {
		return &Response{
			Code:    code,
			Message: line[4:],
			Lines:   lines,
		}, nil
	}

	if line[3] != '-' {
		return nil, &ProtocolError{Line: line, Reason: "separator must be space or dash"}
	}

	if err := readContinuation(r, code, &lines); err != nil {
		return nil, err
	}

	var messageLines []string
	for _, l := range lines {
		if strings.HasPrefix(l, " ") {
			messageLines = append(messageLines, strings.TrimSpace(l))
		} else if len(l) > 4 {
			messageLines = append(messageLines, l[4:])
		}
	}

	return &Response{
		Code:    code,
		Message: strings.Join(messageLines, "\n"),
		Lines:   lines,
	}, nil
}

// readContinuation consumes the remaining lines of a multi-line reply until
// the terminating "xyz " line arrives.
func readContinuation(r *bufio.Reader, code int, lines *[]string) error {
	codeStr := fmt.Sprintf("%03d", code)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return &ProtocolError{Line: codeStr + "-", Reason: "reply ended before terminating line"}
			}
			return err
		}

		line = strings.TrimRight(line, "\r\n")

		// RFC 2389 continuation lines start with a space
		if len(line) > 0 && line[0] == ' ' {
			*lines = append(*lines, line)
			continue
		}

		if len(line) < 4 || line[0:3] != codeStr {
			return &ProtocolError{Line: line, Reason: "continuation does not repeat the reply code"}
		}

		*lines = append(*lines, line)

		if line[3] == ' ' {
			return nil
		}

		if line[3] != '-' {
			return &ProtocolError{Line: line, Reason: "separator must be space or dash"}
		}
	}
}

// sendCommand writes one command line and reads the reply. Exactly one
// command is in flight at a time; concurrent callers serialize on the
// client mutex. Transport failures come back as TimeoutError or
// ConnectionLostError.
func (c *Client) sendCommand(command string, args ...string) (*Response, error) {
	cmd := command
	if len(args) > 0 {
		cmd = command + " " + strings.Join(args, " ")
	}

	c.logger.Debug("ftp command", zap.String("cmd", redactCommand(command, cmd)))

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastCommand = time.Now()

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, wireError(command, c.timeout, err)
		}
	}

	if _, err := fmt.Fprintf(c.conn, "%s\r\n", cmd); err != nil {
		return nil, wireError(command, c.timeout, err)
	}

	// The deadline goes on the underlying connection, not the bufio reader
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, wireError(command, c.timeout, err)
		}
	}

	resp, err := readResponse(c.reader)
	if err != nil {
		if _, ok := err.(*ProtocolError); ok {
			return nil, err
		}
		return nil, wireError(command, c.timeout, err)
	}

	c.logger.Debug("ftp reply", zap.Int("code", resp.Code), zap.String("message", resp.Message))

	return resp, nil
}

// redactCommand hides credentials in the command trace.
func redactCommand(verb, full string) string {
	if verb == "PASS" {
		return "PASS ****"
	}
	return full
}

// expectCode sends a command and requires one specific reply code.
func (c *Client) expectCode(expected int, command string, args ...string) (*Response, error) {
	resp, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}

	if resp.Code != expected {
		return resp, &CommandError{
			Command: command,
			Code:    resp.Code,
			Message: resp.Message,
		}
	}

	return resp, nil
}

// expect2xx sends a command and requires any success reply.
func (c *Client) expect2xx(command string, args ...string) (*Response, error) {
	resp, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}

	if !resp.Is2xx() {
		return resp, &CommandError{
			Command: command,
			Code:    resp.Code,
			Message: resp.Message,
		}
	}

	return resp, nil
}
