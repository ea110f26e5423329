package ftpq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// connectTestSession builds a session and connects it to the scripted
// server. The caller still owns the session and should defer Disconnect.
func connectTestSession(t *testing.T, s *testServer, options ...Option) *Session {
	t.Helper()
	opts := append([]Option{WithTimeout(2 * time.Second)}, options...)
	sess, err := NewSession(opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Connect(context.Background(), s.addr, "alice", "secret"); err != nil {
		t.Fatal(err)
	}
	return sess
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSessionState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state SessionState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateReady, "ready"},
		{StateBusy, "busy"},
		{SessionState(9), "state(9)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("SessionState(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestNewSession(t *testing.T) {
	t.Parallel()

	sess, err := NewSession()
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	if got := sess.State(); got != StateDisconnected {
		t.Errorf("new session state = %v, want %v", got, StateDisconnected)
	}

	if _, err := NewSession(WithTimeout(-time.Second)); err == nil {
		t.Error("NewSession(WithTimeout(-1s)) did not fail")
	}
}

func TestSession_ConnectLifecycle(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	ms.start()
	defer ms.stop()

	sess := connectTestSession(t, ms)

	if got := sess.State(); got != StateReady {
		t.Fatalf("state after connect = %v, want %v", got, StateReady)
	}

	cmds := ms.commands()
	if len(cmds) < 2 || cmds[0] != "USER alice" || cmds[1] != "PASS secret" {
		t.Errorf("login commands = %q, want USER alice, PASS secret first", cmds)
	}

	if err := sess.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error: %v", err)
	}
	if got := sess.State(); got != StateDisconnected {
		t.Errorf("state after disconnect = %v, want %v", got, StateDisconnected)
	}
	if got := ms.countVerb("QUIT"); got != 1 {
		t.Errorf("QUIT sent %d times, want 1", got)
	}

	// Disconnecting again is a no-op.
	if err := sess.Disconnect(); err != nil {
		t.Errorf("second Disconnect() error: %v", err)
	}
}

func TestSession_ConnectWhileConnected(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	ms.start()
	defer ms.stop()

	sess := connectTestSession(t, ms)
	defer func() { _ = sess.Disconnect() }()

	err := sess.Connect(context.Background(), ms.addr, "alice", "secret")
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("second Connect() error = %v, want InvalidStateError", err)
	}
	if stateErr.State != StateReady {
		t.Errorf("InvalidStateError.State = %v, want %v", stateErr.State, StateReady)
	}
}

func TestSession_OperationsBeforeConnect(t *testing.T) {
	t.Parallel()

	sess, err := NewSession()
	if err != nil {
		t.Fatal(err)
	}

	_, err = sess.List(context.Background(), ".")
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("List() before connect error = %v, want InvalidStateError", err)
	}
	if stateErr.State != StateDisconnected {
		t.Errorf("InvalidStateError.State = %v, want %v", stateErr.State, StateDisconnected)
	}
}

func TestSession_AnonymousDefaults(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	ms.start()
	defer ms.stop()

	sess, err := NewSession(WithTimeout(2 * time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Connect(context.Background(), ms.addr, "", ""); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer func() { _ = sess.Disconnect() }()

	cmds := ms.commands()
	if len(cmds) < 2 || cmds[0] != "USER anonymous" || cmds[1] != "PASS anonymous@" {
		t.Errorf("login commands = %q, want anonymous defaults", cmds)
	}
}

func TestSession_ConnectRejected(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	ms.handlers["PASS"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("530 Login incorrect.")
	}
	ms.start()
	defer ms.stop()

	sess, err := NewSession(WithTimeout(2 * time.Second))
	if err != nil {
		t.Fatal(err)
	}

	err = sess.Connect(context.Background(), ms.addr, "alice", "wrong")
	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("Connect() error = %v, want ConnectError", err)
	}
	if connErr.Code != 530 {
		t.Errorf("ConnectError.Code = %d, want 530", connErr.Code)
	}
	if got := sess.State(); got != StateDisconnected {
		t.Errorf("state after rejected login = %v, want %v", got, StateDisconnected)
	}
	// The engine closes the half-open connection politely.
	if got := ms.countVerb("QUIT"); got != 1 {
		t.Errorf("QUIT sent %d times, want 1", got)
	}
}

func TestSession_ConnectBadAddress(t *testing.T) {
	t.Parallel()

	sess, err := NewSession(WithTimeout(2 * time.Second))
	if err != nil {
		t.Fatal(err)
	}

	var argErr *InvalidArgumentError
	if err := sess.Connect(context.Background(), "", "u", "p"); !errors.As(err, &argErr) {
		t.Errorf("Connect(\"\") error = %v, want InvalidArgumentError", err)
	}

	err = sess.Connect(context.Background(), "127.0.0.1:1", "u", "p")
	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("Connect() to dead port error = %v, want ConnectError", err)
	}
	if connErr.Code != 0 {
		t.Errorf("ConnectError.Code = %d, want 0 for a dial failure", connErr.Code)
	}
	if got := sess.State(); got != StateDisconnected {
		t.Errorf("state after dial failure = %v, want %v", got, StateDisconnected)
	}
}

func TestSession_SetSecurity(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	ms.start()
	defer ms.stop()

	sess, err := NewSession(WithTimeout(2 * time.Second))
	if err != nil {
		t.Fatal(err)
	}

	if err := sess.SetSecurity("ftp"); err != nil {
		t.Errorf("SetSecurity(ftp) error: %v", err)
	}
	var argErr *InvalidArgumentError
	if err := sess.SetSecurity("junk"); !errors.As(err, &argErr) {
		t.Errorf("SetSecurity(junk) error = %v, want InvalidArgumentError", err)
	}

	if err := sess.Connect(context.Background(), ms.addr, "alice", "secret"); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sess.Disconnect() }()

	var stateErr *InvalidStateError
	if err := sess.SetSecurity("ftps"); !errors.As(err, &stateErr) {
		t.Errorf("SetSecurity() while connected error = %v, want InvalidStateError", err)
	}
}

func TestSession_ConnectURL(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	ms.handlers["CWD"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("250 Directory changed.")
	}
	ms.start()
	defer ms.stop()

	sess, err := NewSession(WithTimeout(2 * time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.ConnectURL(context.Background(), fmt.Sprintf("ftp://eve:pw@%s/pub", ms.addr)); err != nil {
		t.Fatalf("ConnectURL() error: %v", err)
	}
	defer func() { _ = sess.Disconnect() }()

	if got := sess.State(); got != StateReady {
		t.Errorf("state = %v, want %v", got, StateReady)
	}

	cmds := ms.commands()
	for _, want := range []string{"USER eve", "PASS pw", "CWD /pub"} {
		found := false
		for _, line := range cmds {
			if line == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %q not sent, got %q", want, cmds)
		}
	}
}

func TestSession_ConnectURL_RootPath(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	ms.start()
	defer ms.stop()

	sess, err := NewSession(WithTimeout(2 * time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.ConnectURL(context.Background(), fmt.Sprintf("ftp://eve:pw@%s/", ms.addr)); err != nil {
		t.Fatalf("ConnectURL() error: %v", err)
	}
	defer func() { _ = sess.Disconnect() }()

	if got := ms.countVerb("CWD"); got != 0 {
		t.Errorf("CWD sent %d times for a bare root path, want 0", got)
	}
}

func TestSession_ConnectURL_Invalid(t *testing.T) {
	t.Parallel()

	sess, err := NewSession()
	if err != nil {
		t.Fatal(err)
	}

	var argErr *InvalidArgumentError
	if err := sess.ConnectURL(context.Background(), "http://example.com"); !errors.As(err, &argErr) {
		t.Errorf("ConnectURL(http) error = %v, want InvalidArgumentError", err)
	}
	if err := sess.ConnectURL(context.Background(), "://bad"); !errors.As(err, &argErr) {
		t.Errorf("ConnectURL(malformed) error = %v, want InvalidArgumentError", err)
	}
	if got := sess.State(); got != StateDisconnected {
		t.Errorf("state = %v, want %v", got, StateDisconnected)
	}
}

func TestSession_ConnectURL_BadDirectory(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	ms.handlers["CWD"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("550 No such directory.")
	}
	ms.start()
	defer ms.stop()

	sess, err := NewSession(WithTimeout(2 * time.Second))
	if err != nil {
		t.Fatal(err)
	}

	err = sess.ConnectURL(context.Background(), fmt.Sprintf("ftp://eve:pw@%s/missing", ms.addr))
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("ConnectURL() error = %v, want NotFoundError", err)
	}
	if notFound.Path != "/missing" {
		t.Errorf("NotFoundError.Path = %q, want %q", notFound.Path, "/missing")
	}

	// The failed directory change tears the whole connection down.
	if got := sess.State(); got != StateDisconnected {
		t.Errorf("state = %v, want %v", got, StateDisconnected)
	}
	if got := ms.countVerb("QUIT"); got != 1 {
		t.Errorf("QUIT sent %d times, want 1", got)
	}
}

func TestSession_BusyDuringOperation(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	entered := make(chan struct{})
	gate := make(chan struct{})
	ms.handlers["CWD"] = func(c *textproto.Conn, _ string) {
		close(entered)
		<-gate
		_ = c.PrintfLine("250 Directory changed.")
	}
	ms.start()
	defer ms.stop()

	sess := connectTestSession(t, ms)
	defer func() { _ = sess.Disconnect() }()

	errCh := make(chan error, 1)
	go func() {
		errCh <- sess.ChangeDir(context.Background(), "slow")
	}()

	<-entered
	if got := sess.State(); got != StateBusy {
		t.Errorf("state during operation = %v, want %v", got, StateBusy)
	}

	close(gate)
	if err := <-errCh; err != nil {
		t.Fatalf("ChangeDir() error: %v", err)
	}
	if got := sess.State(); got != StateReady {
		t.Errorf("state after operation = %v, want %v", got, StateReady)
	}
}

func TestSession_QueueRunsInOrder(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	entered := make(chan struct{})
	gate := make(chan struct{})
	ms.handlers["CWD"] = func(c *textproto.Conn, _ string) {
		close(entered)
		<-gate
		_ = c.PrintfLine("250 Directory changed.")
	}
	ms.handlers["PWD"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine(`257 "/" is the current directory.`)
	}
	ms.start()
	defer ms.stop()

	sess := connectTestSession(t, ms)
	defer func() { _ = sess.Disconnect() }()

	first := make(chan error, 1)
	go func() {
		first <- sess.ChangeDir(context.Background(), "slow")
	}()
	<-entered

	second := make(chan error, 1)
	go func() {
		_, err := sess.CurrentDir(context.Background())
		second <- err
	}()

	// The second operation must be registered and waiting before the
	// first is released.
	waitUntil(t, "second operation to queue", func() bool {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return len(sess.tasks) == 2
	})

	close(gate)
	if err := <-first; err != nil {
		t.Fatalf("ChangeDir() error: %v", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("CurrentDir() error: %v", err)
	}

	cwdIdx, pwdIdx := -1, -1
	for i, line := range ms.commands() {
		if strings.HasPrefix(line, "CWD") && cwdIdx == -1 {
			cwdIdx = i
		}
		if line == "PWD" && pwdIdx == -1 {
			pwdIdx = i
		}
	}
	if cwdIdx == -1 || pwdIdx == -1 || pwdIdx < cwdIdx {
		t.Errorf("commands out of order: CWD at %d, PWD at %d", cwdIdx, pwdIdx)
	}
}

func TestSession_CancelQueuedOperation(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	entered := make(chan struct{})
	gate := make(chan struct{})
	ms.handlers["CWD"] = func(c *textproto.Conn, _ string) {
		close(entered)
		<-gate
		_ = c.PrintfLine("250 Directory changed.")
	}
	ms.start()
	defer ms.stop()

	sess := connectTestSession(t, ms)
	defer func() { _ = sess.Disconnect() }()

	first := make(chan error, 1)
	go func() {
		first <- sess.ChangeDir(context.Background(), "slow")
	}()
	<-entered

	second := make(chan error, 1)
	go func() {
		_, err := sess.CurrentDir(context.Background())
		second <- err
	}()
	waitUntil(t, "second operation to queue", func() bool {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return len(sess.tasks) == 2
	})

	sess.Cancel()

	err := <-second
	var cancelled *CancelledError
	if !errors.As(err, &cancelled) {
		t.Fatalf("queued CurrentDir() error = %v, want CancelledError", err)
	}
	if cancelled.Op != "current directory" {
		t.Errorf("CancelledError.Op = %q, want %q", cancelled.Op, "current directory")
	}
	if cancelled.TaskID == "" {
		t.Error("CancelledError.TaskID is empty")
	}

	// The running operation already held the channel; letting the server
	// answer completes it normally.
	close(gate)
	if err := <-first; err != nil {
		t.Errorf("running ChangeDir() error: %v", err)
	}

	if got := ms.countVerb("PWD"); got != 0 {
		t.Errorf("PWD sent %d times for a cancelled operation, want 0", got)
	}
}

func TestSession_CancelIdle(t *testing.T) {
	t.Parallel()

	sess, err := NewSession()
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}

	// Nothing queued, nothing running. Cancel must still return.
	sess.Cancel()
	if got := sess.State(); got != StateDisconnected {
		t.Errorf("state after idle Cancel = %v, want %v", got, StateDisconnected)
	}

	ms := newTestServer(t)
	ms.handlers["PWD"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine(`257 "/" is the current directory.`)
	}
	ms.start()
	defer ms.stop()

	sess = connectTestSession(t, ms)
	defer func() { _ = sess.Disconnect() }()

	sess.Cancel()
	if got := sess.State(); got != StateReady {
		t.Errorf("state after connected idle Cancel = %v, want %v", got, StateReady)
	}

	// The session keeps working afterwards.
	if _, err := sess.CurrentDir(context.Background()); err != nil {
		t.Errorf("CurrentDir() after idle Cancel error: %v", err)
	}
}

func TestSession_QueuedOperationContextCancel(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	entered := make(chan struct{})
	gate := make(chan struct{})
	ms.handlers["CWD"] = func(c *textproto.Conn, _ string) {
		close(entered)
		<-gate
		_ = c.PrintfLine("250 Directory changed.")
	}
	ms.start()
	defer ms.stop()

	sess := connectTestSession(t, ms)
	defer func() { _ = sess.Disconnect() }()

	first := make(chan error, 1)
	go func() {
		first <- sess.ChangeDir(context.Background(), "slow")
	}()
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	second := make(chan error, 1)
	go func() {
		_, err := sess.CurrentDir(ctx)
		second <- err
	}()
	waitUntil(t, "second operation to queue", func() bool {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return len(sess.tasks) == 2
	})

	cancel()

	// A caller cancelling its own context gets the plain context error,
	// not the session-level cancellation type.
	if err := <-second; !errors.Is(err, context.Canceled) {
		t.Errorf("queued CurrentDir() error = %v, want context.Canceled", err)
	}

	close(gate)
	if err := <-first; err != nil {
		t.Errorf("running ChangeDir() error: %v", err)
	}
}

func TestSession_PathErrors(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	ms.handlers["DELE"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("550 No such file or directory.")
	}
	ms.handlers["MKD"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("550 Permission denied.")
	}
	ms.handlers["RMD"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("550 Access is prohibited.")
	}
	ms.handlers["SITE"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("502 SITE not implemented.")
	}
	ms.start()
	defer ms.stop()

	sess := connectTestSession(t, ms)
	defer func() { _ = sess.Disconnect() }()

	ctx := context.Background()

	var notFound *NotFoundError
	if err := sess.Remove(ctx, "ghost.txt"); !errors.As(err, &notFound) {
		t.Errorf("Remove() error = %v, want NotFoundError", err)
	} else if notFound.Path != "ghost.txt" || notFound.Code != 550 {
		t.Errorf("NotFoundError = %+v, want path ghost.txt code 550", notFound)
	}

	var denied *PermissionError
	if err := sess.MakeDir(ctx, "/readonly/new"); !errors.As(err, &denied) {
		t.Errorf("MakeDir() error = %v, want PermissionError", err)
	}
	if err := sess.RemoveDir(ctx, "/locked"); !errors.As(err, &denied) {
		t.Errorf("RemoveDir() error = %v, want PermissionError", err)
	}

	// Non-550 rejections keep their command error shape.
	err := sess.Chmod(ctx, "script.sh", 0o755)
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("Chmod() error = %v, want CommandError", err)
	}
	if errors.As(err, &notFound) || errors.As(err, &denied) {
		t.Errorf("Chmod() error %v classified as a path error", err)
	}
}

func TestSession_StatMachineListing(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	ms.handlers["FEAT"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("211-Features:")
		_ = c.PrintfLine(" MLST type*;size*;modify*;")
		_ = c.PrintfLine("211 End")
	}
	ms.handlers["MLST"] = func(c *textproto.Conn, args string) {
		_ = c.PrintfLine("250-Listing %s", args)
		_ = c.PrintfLine(" type=file;size=2048;modify=20240101120000; %s", args)
		_ = c.PrintfLine("250 End")
	}
	ms.start()
	defer ms.stop()

	sess := connectTestSession(t, ms)
	defer func() { _ = sess.Disconnect() }()

	entry, err := sess.Stat(context.Background(), "notes.txt")
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if entry.Name != "notes.txt" || entry.Type != EntryTypeFile || entry.Size != 2048 {
		t.Errorf("Stat() = %+v, want file notes.txt size 2048", entry)
	}
	if got := ms.countVerb("SIZE"); got != 0 {
		t.Errorf("SIZE sent %d times despite MLST support, want 0", got)
	}
}

func TestSession_StatFallback(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	ms.handlers["SIZE"] = func(c *textproto.Conn, args string) {
		if args == "docs/readme.md" {
			_ = c.PrintfLine("213 4096")
			return
		}
		_ = c.PrintfLine("213 100")
	}
	ms.handlers["MDTM"] = func(c *textproto.Conn, args string) {
		if args == "docs/readme.md" {
			_ = c.PrintfLine("213 20240715083000")
			return
		}
		_ = c.PrintfLine("550 MDTM not available.")
	}
	ms.start()
	defer ms.stop()

	sess := connectTestSession(t, ms)
	defer func() { _ = sess.Disconnect() }()

	entry, err := sess.Stat(context.Background(), "docs/readme.md")
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if entry.Name != "readme.md" {
		t.Errorf("Name = %q, want base name %q", entry.Name, "readme.md")
	}
	if entry.Type != EntryTypeFile || entry.Size != 4096 {
		t.Errorf("entry = %+v, want file of 4096 bytes", entry)
	}
	want := time.Date(2024, 7, 15, 8, 30, 0, 0, time.UTC)
	if !entry.ModTime.Equal(want) {
		t.Errorf("ModTime = %v, want %v", entry.ModTime, want)
	}
	if got := ms.countVerb("MLST"); got != 0 {
		t.Errorf("MLST sent %d times without server support, want 0", got)
	}

	// A server without MDTM still yields an entry, just without a time.
	entry, err = sess.Stat(context.Background(), "other.bin")
	if err != nil {
		t.Fatalf("Stat() without MDTM error: %v", err)
	}
	if !entry.ModTime.IsZero() {
		t.Errorf("ModTime = %v, want zero when MDTM fails", entry.ModTime)
	}
}

func TestSession_StatFallbackMissing(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	ms.handlers["SIZE"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("550 No such file.")
	}
	ms.start()
	defer ms.stop()

	sess := connectTestSession(t, ms)
	defer func() { _ = sess.Disconnect() }()

	_, err := sess.Stat(context.Background(), "ghost.bin")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Stat() error = %v, want NotFoundError", err)
	}
}

func TestSession_FileURIPathsStripped(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	ms.handlers["DELE"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("250 File removed.")
	}
	ms.start()
	defer ms.stop()

	sess := connectTestSession(t, ms)
	defer func() { _ = sess.Disconnect() }()

	if err := sess.Remove(context.Background(), "file:///tmp/old.log"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}

	found := false
	for _, line := range ms.commands() {
		if line == "DELE /tmp/old.log" {
			found = true
		}
		if strings.Contains(line, "file:") {
			t.Errorf("URI prefix leaked onto the wire: %q", line)
		}
	}
	if !found {
		t.Errorf("DELE /tmp/old.log not sent, got %q", ms.commands())
	}
}

func TestSession_CancelDuringDownload(t *testing.T) {
	t.Parallel()

	ms := newTestServer(t)
	ms.servePassive(t)
	streaming := make(chan struct{})
	ms.handlers["RETR"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("150 Opening data connection.")
		dconn, err := ms.dataListener.Accept()
		if err != nil {
			t.Errorf("data accept: %v", err)
			return
		}
		chunk := bytes.Repeat([]byte("x"), 32*1024)
		_, _ = dconn.Write(chunk)
		close(streaming)
		for {
			if _, err := dconn.Write(chunk); err != nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		dconn.Close()
		_ = c.PrintfLine("426 Connection closed; transfer aborted.")
	}
	ms.handlers["PWD"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine(`257 "/" is the current directory.`)
	}
	ms.start()
	defer ms.stop()

	sess := connectTestSession(t, ms)
	defer func() { _ = sess.Disconnect() }()

	localPath := filepath.Join(t.TempDir(), "big.bin")
	var fractions []float64
	errCh := make(chan error, 1)
	go func() {
		errCh <- sess.Download(context.Background(), "big.bin", localPath, func(f float64) {
			fractions = append(fractions, f)
		})
	}()

	<-streaming
	sess.Cancel()

	err := <-errCh
	var cancelled *CancelledError
	if !errors.As(err, &cancelled) {
		t.Fatalf("Download() error = %v, want CancelledError", err)
	}
	if cancelled.Op != "download" {
		t.Errorf("CancelledError.Op = %q, want %q", cancelled.Op, "download")
	}
	if cancelled.TaskID == "" {
		t.Error("CancelledError.TaskID is empty")
	}

	if got := sess.State(); got != StateReady {
		t.Errorf("state after cancelled download = %v, want %v", got, StateReady)
	}

	// Partial output stays on disk for a later resume.
	if _, err := os.Stat(localPath); err != nil {
		t.Errorf("partial download file missing: %v", err)
	}

	for i, f := range fractions {
		if f >= 1 {
			t.Errorf("fraction %d = %v, cancelled transfer must never report completion", i, f)
		}
		if i > 0 && f < fractions[i-1] {
			t.Errorf("fraction %d = %v went backwards from %v", i, f, fractions[i-1])
		}
	}

	// The control channel survives the abort.
	dir, err := sess.CurrentDir(context.Background())
	if err != nil {
		t.Fatalf("CurrentDir() after cancel error: %v", err)
	}
	if dir != "/" {
		t.Errorf("CurrentDir() = %q, want %q", dir, "/")
	}
}
