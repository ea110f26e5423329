package ftpq

import (
	"bufio"
	"errors"
	"strings"
	"testing"
)

func TestReadResponse_SingleLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		wantCode int
		wantMsg  string
	}{
		{
			name:     "simple success",
			input:    "220 Welcome\r\n",
			wantCode: 220,
			wantMsg:  "Welcome",
		},
		{
			name:     "error response",
			input:    "550 File not found\r\n",
			wantCode: 550,
			wantMsg:  "File not found",
		},
		{
			name:     "code with no message",
			input:    "200 \r\n",
			wantCode: 200,
			wantMsg:  "",
		},
		{
			name:     "bare newline terminator",
			input:    "226 Transfer complete\n",
			wantCode: 226,
			wantMsg:  "Transfer complete",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := bufio.NewReader(strings.NewReader(tt.input))
			resp, err := readResponse(reader)
			if err != nil {
				t.Fatalf("readResponse() error = %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %v, want %v", resp.Code, tt.wantCode)
			}
			if resp.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMsg)
			}
			if len(resp.Lines) != 1 {
				t.Errorf("lines = %d, want 1", len(resp.Lines))
			}
		})
	}
}

func TestReadResponse_MultiLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		input     string
		wantCode  int
		wantMsg   string
		wantLines int
	}{
		{
			name: "dash continuation",
			input: "220-Welcome to FTP\r\n" +
				"220-This is line 2\r\n" +
				"220 Ready\r\n",
			wantCode:  220,
			wantMsg:   "Welcome to FTP\nThis is line 2\nReady",
			wantLines: 3,
		},
		{
			name: "transfer complete",
			input: "226-Transfer complete\r\n" +
				"226 Closing data connection\r\n",
			wantCode:  226,
			wantMsg:   "Transfer complete\nClosing data connection",
			wantLines: 2,
		},
		{
			name: "space-indented feature list",
			input: "211-Extensions supported:\r\n" +
				" MLST size*;modify*\r\n" +
				" UTF8\r\n" +
				"211 End\r\n",
			wantCode:  211,
			wantMsg:   "Extensions supported:\nMLST size*;modify*\nUTF8\nEnd",
			wantLines: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := bufio.NewReader(strings.NewReader(tt.input))
			resp, err := readResponse(reader)
			if err != nil {
				t.Fatalf("readResponse() error = %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %v, want %v", resp.Code, tt.wantCode)
			}
			if resp.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMsg)
			}
			if len(resp.Lines) != tt.wantLines {
				t.Errorf("lines = %d, want %d", len(resp.Lines), tt.wantLines)
			}
		})
	}
}

func TestReadResponse_Malformed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
	}{
		{name: "too short", input: "22\r\n"},
		{name: "non-numeric code", input: "abc Ready\r\n"},
		{name: "bad separator", input: "220_Ready\r\n"},
		{
			name:  "continuation code mismatch",
			input: "220-Hello\r\n500 Done\r\n",
		},
		{
			name:  "reply truncated mid-continuation",
			input: "220-Hello\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := bufio.NewReader(strings.NewReader(tt.input))
			_, err := readResponse(reader)
			var protoErr *ProtocolError
			if !errors.As(err, &protoErr) {
				t.Errorf("expected ProtocolError, got %v", err)
			}
		})
	}
}

func TestResponse_CodeClasses(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code                   int
		is2xx, is3xx, is4, is5 bool
	}{
		{200, true, false, false, false},
		{226, true, false, false, false},
		{331, false, true, false, false},
		{350, false, true, false, false},
		{421, false, false, true, false},
		{450, false, false, true, false},
		{502, false, false, false, true},
		{550, false, false, false, true},
		{150, false, false, false, false},
	}

	for _, tt := range tests {
		r := &Response{Code: tt.code}
		if r.Is2xx() != tt.is2xx {
			t.Errorf("Is2xx(%d) = %v", tt.code, r.Is2xx())
		}
		if r.Is3xx() != tt.is3xx {
			t.Errorf("Is3xx(%d) = %v", tt.code, r.Is3xx())
		}
		if r.Is4xx() != tt.is4 {
			t.Errorf("Is4xx(%d) = %v", tt.code, r.Is4xx())
		}
		if r.Is5xx() != tt.is5 {
			t.Errorf("Is5xx(%d) = %v", tt.code, r.Is5xx())
		}
	}
}

func TestResponse_String(t *testing.T) {
	t.Parallel()
	r := &Response{
		Code:  227,
		Lines: []string{"227 Entering Passive Mode (127,0,0,1,4,1)."},
	}
	want := "227 Entering Passive Mode (127,0,0,1,4,1)."
	if got := r.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestRedactCommand(t *testing.T) {
	t.Parallel()
	if got := redactCommand("PASS", "PASS hunter2"); got != "PASS ****" {
		t.Errorf("PASS not redacted: %q", got)
	}
	if got := redactCommand("USER", "USER alice"); got != "USER alice" {
		t.Errorf("USER mangled: %q", got)
	}
}
