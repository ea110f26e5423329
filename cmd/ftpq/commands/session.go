package commands

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/ftpq-dev/ftpq"
	"github.com/ftpq-dev/ftpq/internal/cli/prompt"
)

// openSession dials and logs in using the merged settings. The caller
// owns the returned session and should defer Disconnect.
func openSession(ctx context.Context) (*ftpq.Session, error) {
	if settings.Host == "" {
		return nil, errors.New("no host configured, pass --host or set it in the config file")
	}

	mode, err := ftpq.ParseSecurityMode(settings.Security)
	if err != nil {
		return nil, err
	}

	opts := []ftpq.Option{
		ftpq.WithTimeout(settings.Timeout),
		ftpq.WithLogger(logger),
	}
	switch mode {
	case ftpq.SecurityImplicitTLS:
		opts = append(opts, ftpq.WithImplicitTLS(&tls.Config{InsecureSkipVerify: settings.Insecure}))
	case ftpq.SecurityExplicitTLS:
		opts = append(opts, ftpq.WithExplicitTLS(&tls.Config{InsecureSkipVerify: settings.Insecure}))
	}
	if settings.Active {
		opts = append(opts, ftpq.WithActiveMode())
	}
	if settings.RateLimit > 0 {
		opts = append(opts, ftpq.WithRateLimit(int64(settings.RateLimit)))
	}
	if settings.Compression {
		opts = append(opts, ftpq.WithCompression())
	}

	password := settings.Password
	if settings.User != "" && password == "" {
		password, err = prompt.Password(fmt.Sprintf("Password for %s", settings.User))
		if err != nil {
			return nil, err
		}
	}

	sess, err := ftpq.NewSession(opts...)
	if err != nil {
		return nil, err
	}

	if err := sess.Connect(ctx, settings.Host, settings.User, password); err != nil {
		return nil, err
	}
	return sess, nil
}

// transferProgress returns a ProgressFunc that redraws a percentage
// line on stderr, leaving command output on stdout intact.
func transferProgress(label string) ftpq.ProgressFunc {
	return func(fraction float64) {
		fmt.Fprintf(os.Stderr, "\r%s  %3.0f%%", label, fraction*100)
		if fraction >= 1 {
			fmt.Fprintln(os.Stderr)
		}
	}
}
