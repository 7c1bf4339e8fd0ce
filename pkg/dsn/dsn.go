// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dsn recognizes the database connection strings passed to MCP
// database servers, validates them and masks their passwords for logs.
package dsn

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Drivers recognized by Parse.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

const redactedPassword = "xxxxx"

// ErrNotDSN is returned by Parse for strings that are not connection strings.
var ErrNotDSN = errors.New("not a connection string")

// DSN is a parsed connection string.
type DSN struct {
	Driver   string
	User     string
	Host     string
	Database string

	raw      string
	redacted string
}

// String returns the connection string with its password masked.
func (d *DSN) String() string { return d.redacted }

// Raw returns the connection string as given.
func (d *DSN) Raw() string { return d.raw }

// Parse recognizes a postgres URL (postgres:// or postgresql://), a mysql
// URL (mysql://) or a go-sql-driver DSN (user:pass@tcp(host)/db). Strings of
// another shape return ErrNotDSN; recognized but invalid strings return a
// validation error.
func Parse(s string) (*DSN, error) {
	switch {
	case strings.HasPrefix(s, "postgres://"), strings.HasPrefix(s, "postgresql://"):
		return parsePostgres(s)
	case strings.HasPrefix(s, "mysql://"):
		return parseMySQLURL(s)
	case looksLikeMySQLDSN(s):
		return parseMySQLDSN(s)
	default:
		return nil, ErrNotDSN
	}
}

func parsePostgres(s string) (*DSN, error) {
	if _, err := pq.ParseURL(s); err != nil {
		return nil, fmt.Errorf("invalid postgres connection string: %w", err)
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres connection string: %w", err)
	}
	if u.Host == "" && u.Query().Get("host") == "" {
		return nil, fmt.Errorf("invalid postgres connection string: missing host")
	}

	d := &DSN{
		Driver:   DriverPostgres,
		Host:     u.Host,
		Database: strings.TrimPrefix(u.Path, "/"),
		raw:      s,
		redacted: u.Redacted(),
	}
	if d.Host == "" {
		d.Host = u.Query().Get("host")
	}
	if u.User != nil {
		d.User = u.User.Username()
	}
	return d, nil
}

func parseMySQLURL(s string) (*DSN, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql connection string: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid mysql connection string: missing host")
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = net.JoinHostPort(u.Hostname(), "3306")
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	// Round trip through the driver so the result is a DSN it accepts.
	if _, err := mysql.ParseDSN(cfg.FormatDSN()); err != nil {
		return nil, fmt.Errorf("invalid mysql connection string: %w", err)
	}

	return &DSN{
		Driver:   DriverMySQL,
		User:     cfg.User,
		Host:     cfg.Addr,
		Database: cfg.DBName,
		raw:      s,
		redacted: u.Redacted(),
	}, nil
}

func looksLikeMySQLDSN(s string) bool {
	return strings.Contains(s, "@tcp(") || strings.Contains(s, "@unix(")
}

func parseMySQLDSN(s string) (*DSN, error) {
	cfg, err := mysql.ParseDSN(s)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql connection string: %w", err)
	}

	d := &DSN{
		Driver:   DriverMySQL,
		User:     cfg.User,
		Host:     cfg.Addr,
		Database: cfg.DBName,
		raw:      s,
	}
	if cfg.Passwd != "" {
		cfg.Passwd = redactedPassword
	}
	d.redacted = cfg.FormatDSN()
	return d, nil
}

// Find returns the first argument that is a connection string and its
// index. A recognized but invalid connection string is an error.
func Find(args []string) (*DSN, int, error) {
	for i, arg := range args {
		d, err := Parse(arg)
		if errors.Is(err, ErrNotDSN) {
			continue
		}
		if err != nil {
			return nil, i, err
		}
		return d, i, nil
	}
	return nil, -1, nil
}

// RedactArgs returns a copy of args with every connection string masked.
func RedactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if d, err := Parse(arg); err == nil {
			out[i] = d.String()
		} else if errors.Is(err, ErrNotDSN) {
			out[i] = arg
		} else {
			out[i] = "<invalid connection string>"
		}
	}
	return out
}
