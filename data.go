package ftpq

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"
)

var (
	// pasvRegex matches "227 Entering Passive Mode (h1,h2,h3,h4,p1,p2)"
	pasvRegex = regexp.MustCompile(`\((\d+),(\d+),(\d+),(\d+),(\d+),(\d+)\)`)

	// epsvRegex matches "229 Entering Extended Passive Mode (|||port|)"
	epsvRegex = regexp.MustCompile(`\(\|\|\|(\d+)\|\)`)
)

// parsePASV extracts the data address from a PASV reply.
// "227 Entering Passive Mode (192,168,1,1,195,149)" is 192.168.1.1:50069,
// the port being p1*256+p2.
func parsePASV(response string) (string, error) {
	matches := pasvRegex.FindStringSubmatch(response)
	if len(matches) != 7 {
		return "", &ProtocolError{Line: response, Reason: "PASV reply missing host-port tuple"}
	}

	var h [4]int
	for i := 0; i < 4; i++ {
		val, err := strconv.Atoi(matches[i+1])
		if err != nil || val < 0 || val > 255 {
			return "", &ProtocolError{Line: response, Reason: "PASV address octet out of range"}
		}
		h[i] = val
	}
	host := fmt.Sprintf("%d.%d.%d.%d", h[0], h[1], h[2], h[3])

	p1, err1 := strconv.Atoi(matches[5])
	p2, err2 := strconv.Atoi(matches[6])
	if err1 != nil || err2 != nil || p1 < 0 || p1 > 255 || p2 < 0 || p2 > 255 {
		return "", &ProtocolError{Line: response, Reason: "PASV port byte out of range"}
	}
	port := p1*256 + p2

	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// parseEPSV extracts the port from an EPSV reply such as
// "229 Entering Extended Passive Mode (|||6446|)".
func parseEPSV(response string) (string, error) {
	matches := epsvRegex.FindStringSubmatch(response)
	if len(matches) != 2 {
		return "", &ProtocolError{Line: response, Reason: "EPSV reply missing port"}
	}

	port, err := strconv.Atoi(matches[1])
	if err != nil || port < 1 || port > 65535 {
		return "", &ProtocolError{Line: response, Reason: "EPSV port out of range"}
	}

	return matches[1], nil
}

// formatPORT renders an address for the PORT command,
// "192.168.1.100:50000" as "192,168,1,100,195,80".
func formatPORT(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return "", fmt.Errorf("invalid IP address: %s", host)
	}
	ip = ip.To4()
	if ip == nil {
		return "", fmt.Errorf("PORT requires an IPv4 address")
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", fmt.Errorf("invalid port: %s", portStr)
	}

	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip[0], ip[1], ip[2], ip[3], port/256, port%256), nil
}

// formatEPRT renders an address for the EPRT command, |prt|addr|port| with
// protocol 1 for IPv4 and 2 for IPv6.
func formatEPRT(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return "", fmt.Errorf("invalid IP address: %s", host)
	}

	netPrt := 1
	if ip.To4() == nil {
		netPrt = 2
	}

	return fmt.Sprintf("|%d|%s|%s|", netPrt, host, portStr), nil
}

// resolveDataAddr fixes up the advertised data address. Servers behind NAT
// often advertise 0.0.0.0; the control connection host is the one that
// actually works.
func resolveDataAddr(pasvAddr, controlHost string) string {
	host, port, err := net.SplitHostPort(pasvAddr)
	if err != nil {
		return pasvAddr
	}

	if host == "0.0.0.0" {
		return net.JoinHostPort(controlHost, port)
	}

	return pasvAddr
}

// dataTLS reports whether data connections must be wrapped in TLS. PROT P
// was negotiated for both TLS modes, so this tracks the security mode, not
// whether TLS material happens to be configured.
func (c *Client) dataTLS() bool {
	return c.security != SecurityPlain
}

// openDataConn opens a data connection in the configured mode.
func (c *Client) openDataConn(ctx context.Context) (net.Conn, error) {
	if c.activeMode {
		return c.openActiveDataConn()
	}
	return c.openPassiveDataConn(ctx)
}

// openActiveDataConn arranges an active mode data connection: listen
// locally, tell the server where with PORT or EPRT, and hand back a
// connection that accepts lazily, since the server only dials after the
// transfer command goes out.
func (c *Client) openActiveDataConn() (net.Conn, error) {
	localAddr := c.conn.LocalAddr().String()
	host, _, err := net.SplitHostPort(localAddr)
	if err != nil {
		host = "127.0.0.1"
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		listener, err = net.Listen("tcp", ":0")
		if err != nil {
			return nil, fmt.Errorf("listen for active data connection: %w", err)
		}
	}

	addr := listener.Addr().String()
	listenHost, _, err := net.SplitHostPort(addr)
	if err != nil {
		listener.Close()
		return nil, err
	}
	ip := net.ParseIP(listenHost)
	if ip == nil {
		listener.Close()
		return nil, fmt.Errorf("parse local listen address: %s", listenHost)
	}

	// PORT for IPv4, which legacy servers prefer; EPRT where IPv6
	// leaves no choice.
	var (
		resp *Response
		cmd  string
	)
	if ip.To4() == nil {
		cmd = "EPRT"
		eprtArg, err2 := formatEPRT(addr)
		if err2 != nil {
			listener.Close()
			return nil, err2
		}
		resp, err = c.sendCommand("EPRT", eprtArg)
	} else {
		cmd = "PORT"
		portArg, err2 := formatPORT(addr)
		if err2 != nil {
			listener.Close()
			return nil, err2
		}
		resp, err = c.sendCommand("PORT", portArg)
	}

	if err != nil {
		listener.Close()
		return nil, err
	}
	if !resp.Is2xx() {
		listener.Close()
		return nil, &CommandError{Command: cmd, Code: resp.Code, Message: resp.Message}
	}

	var tlsConfig *tls.Config
	if c.dataTLS() {
		tlsConfig = c.tlsConfig
	}

	return &activeConn{
		listener:  listener,
		tlsConfig: tlsConfig,
		timeout:   c.timeout,
	}, nil
}

// openPassiveDataConn opens a passive mode data connection, EPSV first
// with PASV as the fallback. A server answering EPSV with 502 is never
// asked again.
func (c *Client) openPassiveDataConn(ctx context.Context) (net.Conn, error) {
	var addr string

	if !c.disableEPSV {
		if resp, err := c.sendCommand("EPSV"); err == nil {
			if resp.Code == 502 {
				c.disableEPSV = true
			} else if resp.Is2xx() {
				port, parseErr := parseEPSV(resp.String())
				if parseErr == nil {
					// EPSV replies carry no host, reuse the
					// control connection's.
					addr = net.JoinHostPort(c.host, port)
				}
			}
		}
	}

	if addr == "" {
		resp, err := c.sendCommand("PASV")
		if err != nil {
			return nil, err
		}

		if !resp.Is2xx() {
			return nil, &CommandError{Command: "PASV", Code: resp.Code, Message: resp.Message}
		}

		addr, err = parsePASV(resp.String())
		if err != nil {
			return nil, err
		}

		addr = resolveDataAddr(addr, c.host)
	}

	dataConn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial data connection: %w", err)
	}

	if c.dataTLS() {
		tlsConn := tls.Client(dataConn, c.tlsConfig)
		if c.timeout > 0 {
			_ = dataConn.SetDeadline(time.Now().Add(c.timeout))
		}
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			dataConn.Close()
			return nil, fmt.Errorf("data connection TLS handshake: %w", err)
		}
		_ = dataConn.SetDeadline(time.Time{})
		dataConn = tlsConn
	}

	if c.timeout > 0 {
		return &deadlineConn{Conn: dataConn, timeout: c.timeout}, nil
	}

	return dataConn, nil
}

// cmdDataConnFrom opens a data connection and sends the command that uses
// it. The caller reads or writes the returned connection and then calls
// finishDataConn for the completion reply. The transfer gate is held from
// before the passive negotiation so the keep-alive loop cannot slip a NOOP
// between PASV and the transfer command.
func (c *Client) cmdDataConnFrom(ctx context.Context, cmd string, args ...string) (*Response, net.Conn, error) {
	c.transferring.Store(true)

	dataConn, err := c.openDataConn(ctx)
	if err != nil {
		c.transferring.Store(false)
		return nil, nil, err
	}

	c.mu.Lock()
	c.activeData = dataConn
	c.mu.Unlock()

	abandon := func() {
		dataConn.Close()
		c.mu.Lock()
		c.activeData = nil
		c.mu.Unlock()
		c.transferring.Store(false)
	}

	resp, err := c.sendCommand(cmd, args...)
	if err != nil {
		abandon()
		return nil, nil, err
	}

	// 1xx means the transfer is starting, 2xx that the server finished
	// already. Anything else refuses the transfer.
	if resp.Code < 100 || resp.Code >= 300 {
		abandon()
		return resp, nil, &CommandError{Command: cmd, Code: resp.Code, Message: resp.Message}
	}

	return resp, dataConn, nil
}

// finishDataConn closes the data connection and reads the completion
// reply, normally 226. Closing first is what signals end-of-data to the
// server on uploads. The completion reply is read even when the connection
// was closed already by a cancellation, otherwise it would surface as the
// reply to the next command.
func (c *Client) finishDataConn(dataConn net.Conn) error {
	defer func() {
		c.mu.Lock()
		c.activeData = nil
		c.mu.Unlock()
		c.transferring.Store(false)
	}()

	closeErr := dataConn.Close()

	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return fmt.Errorf("arm completion deadline: %w", err)
		}
	}

	resp, err := readResponse(c.reader)
	if err != nil {
		if _, ok := err.(*ProtocolError); ok {
			return err
		}
		return wireError("transfer completion", c.timeout, err)
	}

	c.logger.Debug("transfer complete", zap.Int("code", resp.Code), zap.String("message", resp.Message))

	if !resp.Is2xx() {
		return &CommandError{Command: "transfer", Code: resp.Code, Message: resp.Message}
	}

	if closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
		return fmt.Errorf("close data connection: %w", closeErr)
	}

	return nil
}
