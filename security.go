package ftpq

// SecurityMode selects how the control and data connections are protected.
type SecurityMode int

const (
	// SecurityPlain is unencrypted FTP on port 21.
	SecurityPlain SecurityMode = iota

	// SecurityImplicitTLS wraps the connection in TLS before any FTP
	// traffic, traditionally on port 990.
	SecurityImplicitTLS

	// SecurityExplicitTLS connects in the clear on port 21 and upgrades
	// with AUTH TLS before authenticating.
	SecurityExplicitTLS
)

// String returns the mode name as accepted by ParseSecurityMode.
func (m SecurityMode) String() string {
	switch m {
	case SecurityImplicitTLS:
		return "ftps"
	case SecurityExplicitTLS:
		return "ftpes"
	default:
		return "ftp"
	}
}

// DefaultPort returns the control port used when the address carries none:
// 990 for implicit TLS, 21 otherwise.
func (m SecurityMode) DefaultPort() string {
	if m == SecurityImplicitTLS {
		return "990"
	}
	return "21"
}

// ParseSecurityMode maps the mode names "ftp", "ftps" and "ftpes" onto
// SecurityMode values.
func ParseSecurityMode(s string) (SecurityMode, error) {
	switch s {
	case "ftp":
		return SecurityPlain, nil
	case "ftps":
		return SecurityImplicitTLS, nil
	case "ftpes":
		return SecurityExplicitTLS, nil
	default:
		return SecurityPlain, &InvalidArgumentError{
			Param:  "security mode",
			Value:  s,
			Reason: `must be "ftp", "ftps" or "ftpes"`,
		}
	}
}
