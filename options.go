package ftpq

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// config carries every tunable shared by Client and Session. Sessions hold
// one and hand a copy to each control connection they open.
type config struct {
	timeout     time.Duration
	idleTimeout time.Duration
	logger      *zap.Logger
	dialer      *net.Dialer
	tlsConfig   *tls.Config
	security    SecurityMode
	activeMode  bool
	disableEPSV bool
	compress    bool
	rateLimit   int64
	parsers     []ListingParser
}

func defaultConfig() config {
	return config{
		timeout:  30 * time.Second,
		logger:   zap.NewNop(),
		dialer:   &net.Dialer{},
		security: SecurityPlain,
		parsers: []ListingParser{
			&EPLFParser{},
			&DOSParser{},
			&UnixParser{},
		},
	}
}

// clone returns an independent copy suitable for one connection. The TLS
// config is cloned too so per-connection fields like ServerName can be set
// without touching the caller's value.
func (c config) clone() config {
	out := c
	if c.tlsConfig != nil {
		out.tlsConfig = c.tlsConfig.Clone()
	}
	out.parsers = make([]ListingParser, len(c.parsers))
	copy(out.parsers, c.parsers)
	return out
}

// Option configures a Client or a Session.
type Option func(*config) error

// WithTimeout bounds the initial dial and every subsequent reply wait and
// data-channel read or write. The default is 30 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return fmt.Errorf("timeout must not be negative")
		}
		c.timeout = timeout
		return nil
	}
}

// WithIdleTimeout enables keep-alive: when the control connection sits idle
// for the given duration, a NOOP is sent automatically so the server does
// not drop it. Zero (the default) disables keep-alive.
func WithIdleTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		c.idleTimeout = timeout
		return nil
	}
}

// WithLogger routes command and transfer traces to the given logger at
// debug level. Passwords never appear in traces. The default logger
// discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		c.logger = logger
		return nil
	}
}

// WithDialer substitutes the net.Dialer used for control and data
// connections. Useful for source-address binding or custom resolvers.
func WithDialer(dialer *net.Dialer) Option {
	return func(c *config) error {
		if dialer == nil {
			return fmt.Errorf("dialer must not be nil")
		}
		c.dialer = dialer
		return nil
	}
}

// WithTLSConfig supplies certificate material and verification settings for
// the TLS security modes without selecting a mode. Sessions pick the mode
// through SetSecurity; direct Client users pick it with WithExplicitTLS or
// WithImplicitTLS.
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(c *config) error {
		c.tlsConfig = tlsConfig.Clone()
		return nil
	}
}

// WithExplicitTLS connects in the clear and upgrades with AUTH TLS before
// authentication. This is the recommended FTPS mode.
//
// A ClientSessionCache is installed when the config lacks one: many servers
// (vsftpd, ProFTPD) require TLS session reuse between the control and data
// connections.
func WithExplicitTLS(tlsConfig *tls.Config) Option {
	return func(c *config) error {
		if c.security == SecurityImplicitTLS {
			return fmt.Errorf("explicit TLS cannot be combined with implicit TLS")
		}
		c.security = SecurityExplicitTLS
		c.tlsConfig = ensureSessionCache(tlsConfig.Clone())
		return nil
	}
}

// WithImplicitTLS starts TLS before any FTP traffic, traditionally on port
// 990. A ClientSessionCache is installed when the config lacks one.
func WithImplicitTLS(tlsConfig *tls.Config) Option {
	return func(c *config) error {
		if c.security == SecurityExplicitTLS {
			return fmt.Errorf("implicit TLS cannot be combined with explicit TLS")
		}
		c.security = SecurityImplicitTLS
		c.tlsConfig = ensureSessionCache(tlsConfig.Clone())
		return nil
	}
}

// ensureSessionCache guarantees a session cache on the TLS config so data
// connections can resume the control connection's TLS session.
func ensureSessionCache(tlsConfig *tls.Config) *tls.Config {
	if tlsConfig == nil {
		tlsConfig = &tls.Config{}
	}
	if tlsConfig.ClientSessionCache == nil {
		tlsConfig.ClientSessionCache = tls.NewLRUClientSessionCache(0)
	}
	return tlsConfig
}

// WithActiveMode switches data connections to active (PORT/EPRT) mode: the
// client listens and the server dials back. Passive mode is the default and
// works through NAT; active mode exists for servers that cannot accept
// inbound data connections.
func WithActiveMode() Option {
	return func(c *config) error {
		c.activeMode = true
		return nil
	}
}

// WithDisableEPSV skips the EPSV probe and negotiates passive mode with
// PASV directly. Some legacy servers and middleboxes mishandle EPSV.
func WithDisableEPSV() Option {
	return func(c *config) error {
		c.disableEPSV = true
		return nil
	}
}

// WithCompression requests MODE Z deflate compression for data transfers
// when the server advertises it. Transfers fall back to stream mode
// silently on servers without the feature.
func WithCompression() Option {
	return func(c *config) error {
		c.compress = true
		return nil
	}
}

// WithRateLimit caps transfer bandwidth in bytes per second, applied
// separately to each direction. Zero means unlimited.
func WithRateLimit(bytesPerSecond int64) Option {
	return func(c *config) error {
		if bytesPerSecond < 0 {
			return fmt.Errorf("rate limit must not be negative")
		}
		c.rateLimit = bytesPerSecond
		return nil
	}
}

// WithListParser prepends a custom directory listing parser, giving it
// priority over the built-in EPLF, DOS and Unix parsers.
func WithListParser(parser ListingParser) Option {
	return func(c *config) error {
		c.parsers = append([]ListingParser{parser}, c.parsers...)
		return nil
	}
}
