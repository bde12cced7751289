package adbcj

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// ConnectionSpec is the parsed form of an adbcj:<protocol>://host:port/database
// URL (spec §6).
type ConnectionSpec struct {
	Protocol string // "mysql" or "postgresql"
	Host     string
	Port     string
	Database string
}

// ParseURL parses a URL of the form adbcj:<protocol>://host:port/database.
func ParseURL(raw string) (*ConnectionSpec, error) {
	const prefix = "adbcj:"
	if !strings.HasPrefix(raw, prefix) {
		return nil, errors.Wrapf(ErrProtocol, "url %q must start with %q", raw, prefix)
	}

	u, err := url.Parse(strings.TrimPrefix(raw, prefix))
	if err != nil {
		return nil, errors.Wrapf(ErrProtocol, "invalid adbcj url %q: %v", raw, err)
	}

	spec := &ConnectionSpec{
		Protocol: u.Scheme,
		Host:     u.Hostname(),
		Port:     u.Port(),
		Database: strings.TrimPrefix(u.Path, "/"),
	}
	if spec.Protocol == "" || spec.Host == "" || spec.Database == "" {
		return nil, errors.Wrapf(ErrProtocol, "adbcj url %q missing protocol, host, or database", raw)
	}
	return spec, nil
}
