package ftpq

import (
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// testServer scripts a single control connection. Handlers are keyed by
// verb; verbs without a handler get a canned default reply.
type testServer struct {
	listener net.Listener
	addr     string
	handlers map[string]func(conn *textproto.Conn, args string)

	// dataListener backs passive-mode data connections
	dataListener net.Listener

	mu       sync.Mutex
	conn     net.Conn
	received []string

	done chan struct{}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	return &testServer{
		listener: l,
		addr:     l.Addr().String(),
		handlers: make(map[string]func(*textproto.Conn, string)),
		done:     make(chan struct{}),
	}
}

func (s *testServer) start() {
	go func() {
		defer close(s.done)
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		fmt.Fprintf(conn, "220 Service ready\r\n")

		textConn := textproto.NewConn(conn)
		defer textConn.Close()

		for {
			line, err := textConn.ReadLine()
			if err != nil {
				return
			}

			verb, args, _ := strings.Cut(line, " ")
			verb = strings.ToUpper(verb)

			s.mu.Lock()
			s.received = append(s.received, line)
			s.mu.Unlock()

			if handler, ok := s.handlers[verb]; ok {
				handler(textConn, args)
				continue
			}

			switch verb {
			case "USER":
				_ = textConn.PrintfLine("331 User name okay, need password.")
			case "PASS":
				_ = textConn.PrintfLine("230 User logged in, proceed.")
			case "QUIT":
				_ = textConn.PrintfLine("221 Service closing control connection.")
				return
			case "TYPE":
				_ = textConn.PrintfLine("200 Command okay.")
			case "NOOP":
				_ = textConn.PrintfLine("200 Command okay.")
			default:
				_ = textConn.PrintfLine("502 Command not implemented.")
			}
		}
	}()
}

func (s *testServer) stop() {
	s.listener.Close()
	if s.dataListener != nil {
		s.dataListener.Close()
	}
	// Unblock the read loop if the client never said QUIT.
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
	<-s.done
}

// commands returns a snapshot of every command line received so far.
func (s *testServer) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.received))
	copy(out, s.received)
	return out
}

func (s *testServer) countVerb(verb string) int {
	n := 0
	for _, line := range s.commands() {
		v, _, _ := strings.Cut(line, " ")
		if strings.EqualFold(v, verb) {
			n++
		}
	}
	return n
}

// servePassive wires a data listener and scripts PASV to advertise it.
// EPSV is rejected so clients settle on PASV on the first transfer.
func (s *testServer) servePassive(t *testing.T) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s.dataListener = l

	_, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)
	pasvResp := fmt.Sprintf("227 Entering Passive Mode (127,0,0,1,%d,%d).", port/256, port%256)

	s.handlers["EPSV"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("502 Command not implemented.")
	}
	s.handlers["PASV"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("%s", pasvResp)
	}
}

// sendOverData scripts verb to stream payload over the data connection.
func (s *testServer) sendOverData(t *testing.T, verb string, payload []byte) {
	t.Helper()
	s.handlers[verb] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("150 Opening data connection.")
		dconn, err := s.dataListener.Accept()
		if err != nil {
			t.Errorf("data accept: %v", err)
			return
		}
		_, _ = dconn.Write(payload)
		dconn.Close()
		_ = c.PrintfLine("226 Transfer complete.")
	}
}

// recvOverData scripts verb to drain the data connection. Each transfer's
// bytes arrive on the returned channel.
func (s *testServer) recvOverData(t *testing.T, verb string) <-chan []byte {
	t.Helper()
	got := make(chan []byte, 4)
	s.handlers[verb] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("150 Ok to receive data.")
		dconn, err := s.dataListener.Accept()
		if err != nil {
			t.Errorf("data accept: %v", err)
			return
		}
		data, _ := io.ReadAll(dconn)
		dconn.Close()
		got <- data
		_ = c.PrintfLine("226 Transfer complete.")
	}
	return got
}

// dialTestClient connects and logs in against the scripted server. The
// caller still owns the connection and should defer Quit.
func dialTestClient(t *testing.T, s *testServer, options ...Option) *Client {
	t.Helper()
	opts := append([]Option{WithTimeout(2 * time.Second)}, options...)
	c, err := Dial(s.addr, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Login("anonymous", "anonymous"); err != nil {
		_ = c.Quit()
		t.Fatal(err)
	}
	return c
}
