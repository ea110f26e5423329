package ftpq

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ftpq-dev/ftpq/internal/ratelimit"
)

// Client is one FTP control connection plus the machinery for opening data
// connections against it. It is the engine underneath Session; use it
// directly when you want per-command control without the session state
// machine and queue.
type Client struct {
	config

	// conn is the control channel
	conn net.Conn

	// reader buffers control channel replies
	reader *bufio.Reader

	// host and port the control channel is connected to
	host string
	port string

	// features caches the FEAT response, nil until probed
	features map[string]string

	// limiter throttles data transfers, nil when unlimited
	limiter *ratelimit.Limiter

	// currentType avoids redundant TYPE commands
	currentType string

	// modeZ records that MODE Z has been negotiated for this connection
	modeZ bool

	// mu serializes commands on the control channel
	mu sync.Mutex

	// lastCommand feeds the keep-alive idle check
	lastCommand time.Time

	// quitChan stops the keep-alive goroutine
	quitChan chan struct{}

	// activeData is the data connection of the transfer in flight, nil
	// when none
	activeData net.Conn

	// transferring gates keep-alive NOOPs away from running transfers
	transferring atomic.Bool
}

// Dial connects to an FTP server at "host:port".
//
//	client, err := ftpq.Dial("ftp.example.com:21")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Quit()
func Dial(addr string, options ...Option) (*Client, error) {
	return DialContext(context.Background(), addr, options...)
}

// DialContext connects to an FTP server, honouring ctx for the dial and
// the TLS and greeting handshakes.
func DialContext(ctx context.Context, addr string, options ...Option) (*Client, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, &InvalidArgumentError{Param: "address", Value: addr, Reason: "must be host:port"}
	}

	cfg := defaultConfig()
	for _, opt := range options {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	return dial(ctx, cfg, host, port)
}

// dial builds a client from a finished config and performs the handshake.
// The config is cloned so per-connection adjustments such as ServerName
// stay off the caller's copy.
func dial(ctx context.Context, cfg config, host, port string) (*Client, error) {
	c := &Client{
		config:  cfg.clone(),
		host:    host,
		port:    port,
		limiter: ratelimit.New(cfg.rateLimit),
	}

	// Private dialer copy so the timeout does not leak into a dialer the
	// caller may share.
	dialer := *c.dialer
	dialer.Timeout = c.timeout
	c.dialer = &dialer

	if c.security != SecurityPlain {
		c.tlsConfig = ensureSessionCache(c.tlsConfig)
		if c.tlsConfig.ServerName == "" && !c.tlsConfig.InsecureSkipVerify {
			c.tlsConfig.ServerName = host
		}
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.lastCommand = time.Now()
	c.startKeepAlive()

	return c, nil
}

// connect establishes the control connection and runs the greeting and TLS
// handshakes for the configured security mode.
func (c *Client) connect(ctx context.Context) error {
	addr := net.JoinHostPort(c.host, c.port)
	c.logger.Debug("connecting", zap.String("addr", addr), zap.Stringer("security", c.security))

	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial control connection: %w", err)
	}

	if c.security == SecurityImplicitTLS {
		tlsConn := tls.Client(conn, c.tlsConfig)
		if c.timeout > 0 {
			if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
				conn.Close()
				return fmt.Errorf("arm handshake deadline: %w", err)
			}
		}
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return fmt.Errorf("implicit TLS handshake: %w", err)
		}
		conn = tlsConn
	}

	c.conn = conn
	c.reader = bufio.NewReader(c.conn)

	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			c.conn.Close()
			return fmt.Errorf("arm greeting deadline: %w", err)
		}
	}

	resp, err := readResponse(c.reader)
	if err != nil {
		c.conn.Close()
		if _, ok := err.(*ProtocolError); ok {
			return err
		}
		return wireError("greeting", c.timeout, err)
	}

	c.logger.Debug("greeting", zap.Int("code", resp.Code), zap.String("message", resp.Message))

	if resp.Code != 220 {
		c.conn.Close()
		return &CommandError{Command: "CONNECT", Code: resp.Code, Message: resp.Message}
	}

	if c.security == SecurityExplicitTLS {
		if err := c.upgradeToTLS(ctx); err != nil {
			c.conn.Close()
			return err
		}
	}

	return nil
}

// upgradeToTLS runs the AUTH TLS / PBSZ 0 / PROT P sequence that moves an
// established plaintext control connection onto TLS.
func (c *Client) upgradeToTLS(ctx context.Context) error {
	if _, err := c.expectCode(234, "AUTH", "TLS"); err != nil {
		return err
	}

	c.logger.Debug("upgrading control connection to TLS")
	tlsConn := tls.Client(c.conn, c.tlsConfig)

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return fmt.Errorf("arm handshake deadline: %w", err)
		}
	}

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return fmt.Errorf("explicit TLS handshake: %w", err)
	}

	c.conn = tlsConn
	c.reader = bufio.NewReader(c.conn)

	if _, err := c.expectCode(200, "PBSZ", "0"); err != nil {
		return err
	}
	if _, err := c.expectCode(200, "PROT", "P"); err != nil {
		return err
	}

	return nil
}

// Login authenticates the connection. Servers that need no password answer
// 230 to USER directly. Advertised features are probed after authentication;
// a server without FEAT is fine.
func (c *Client) Login(username, password string) error {
	resp, err := c.sendCommand("USER", username)
	if err != nil {
		return err
	}

	if resp.Code != 230 {
		if resp.Code != 331 {
			return &CommandError{Command: "USER", Code: resp.Code, Message: resp.Message}
		}
		if _, err := c.expectCode(230, "PASS", password); err != nil {
			return err
		}
	}

	_, _ = c.Features()
	return nil
}

// Quit ends the connection: any running transfer is aborted by closing its
// data connection, QUIT is sent best-effort, and the socket is closed.
func (c *Client) Quit() error {
	if c.conn == nil {
		return nil
	}

	if c.quitChan != nil {
		close(c.quitChan)
		c.quitChan = nil
	}

	c.mu.Lock()
	if c.activeData != nil {
		c.activeData.Close()
		c.activeData = nil
	}
	c.mu.Unlock()

	_, _ = c.sendCommand("QUIT")

	err := c.conn.Close()
	c.conn = nil
	return err
}

// Host names the virtual host to serve, per RFC 7151. Must precede Login.
func (c *Client) Host(host string) error {
	_, err := c.expect2xx("HOST", host)
	return err
}

// Type sets the transfer type ("I" binary, "A" ASCII). Repeated requests
// for the current type are elided.
func (c *Client) Type(transferType string) error {
	if c.currentType == transferType {
		return nil
	}

	if _, err := c.expectCode(200, "TYPE", transferType); err != nil {
		return err
	}

	c.currentType = transferType
	return nil
}

// Features returns the server's advertised feature set from FEAT, probing
// once and caching. Servers without FEAT yield an empty set plus the
// rejection.
func (c *Client) Features() (map[string]string, error) {
	if c.features != nil {
		return c.features, nil
	}

	resp, err := c.sendCommand("FEAT")
	if err != nil {
		return nil, err
	}

	if resp.Code != 211 {
		c.features = map[string]string{}
		return c.features, &CommandError{Command: "FEAT", Code: resp.Code, Message: resp.Message}
	}

	c.features = parseFeatureLines(resp.Lines)
	return c.features, nil
}

// parseFeatureLines extracts feature names and parameters from the RFC 2389
// space-indented lines of a FEAT reply. Framing lines carrying the reply
// code are skipped.
func parseFeatureLines(lines []string) map[string]string {
	features := make(map[string]string)
	for _, line := range lines {
		var featureLine string

		if len(line) > 0 && line[0] == ' ' {
			featureLine = strings.TrimSpace(line)
		} else if len(line) >= 4 && (line[3] == '-' || line[3] == ' ') {
			// status framing line
			continue
		} else {
			continue
		}

		if featureLine == "" {
			continue
		}

		name, params, _ := strings.Cut(featureLine, " ")
		features[strings.ToUpper(name)] = params
	}
	return features
}

// HasFeature reports whether FEAT advertised the named feature.
func (c *Client) HasFeature(feature string) bool {
	feats, err := c.Features()
	if err != nil && len(feats) == 0 {
		return false
	}
	_, ok := feats[strings.ToUpper(feature)]
	return ok
}

// supportsMLSD reports whether machine-readable listings are available.
func (c *Client) supportsMLSD() bool {
	return c.HasFeature("MLST")
}

// supportsModeZ reports whether the server advertises deflate transfer
// mode ("MODE Z" in FEAT).
func (c *Client) supportsModeZ() bool {
	feats, err := c.Features()
	if err != nil && len(feats) == 0 {
		return false
	}
	params, ok := feats["MODE"]
	return ok && strings.Contains(strings.ToUpper(params), "Z")
}

// Syst returns the server's system type.
func (c *Client) Syst() (string, error) {
	resp, err := c.expect2xx("SYST")
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// SetOption drives RFC 2389 OPTS, e.g. SetOption("UTF8", "ON").
func (c *Client) SetOption(option, value string) error {
	_, err := c.expect2xx("OPTS", option, value)
	return err
}

// Noop sends NOOP. Useful as a manual keep-alive.
func (c *Client) Noop() error {
	_, err := c.expect2xx("NOOP")
	return err
}

// Quote sends a raw command for anything the typed surface does not cover.
func (c *Client) Quote(command string, args ...string) (*Response, error) {
	return c.sendCommand(command, args...)
}

// Abort sends ABOR for the transfer in flight.
func (c *Client) Abort() error {
	c.mu.Lock()
	hasTransfer := c.activeData != nil
	c.mu.Unlock()

	if !hasTransfer {
		return fmt.Errorf("no transfer in progress")
	}

	_, err := c.expect2xx("ABOR")
	return err
}
