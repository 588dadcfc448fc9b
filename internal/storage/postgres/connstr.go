package postgres

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	pq "github.com/lib/pq"
)

var (
	ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")
	ErrEmbeddedCredentials     = errors.New("connection string must not contain a password")
)

// connString is a PostgreSQL connection string in URL or key=value form.
// Parameter keys are folded to lower case.
type connString struct {
	u      *url.URL
	fields []string
	params map[string]string
}

func isURL(raw string) bool {
	return strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://")
}

func parseConnString(raw string) (connString, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return connString{}, fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}
	if _, err := pq.NewConnector(raw); err != nil {
		return connString{}, fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
	}

	cs := connString{params: make(map[string]string)}
	if !isURL(raw) {
		cs.fields = strings.Fields(raw)
		for _, f := range cs.fields {
			if k, v, ok := strings.Cut(f, "="); ok {
				cs.params[strings.ToLower(k)] = v
			}
		}
		return cs, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return connString{}, fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
	}
	if u.Host == "" && u.User == nil && (u.Path == "" || u.Path == "/") {
		return connString{}, fmt.Errorf("%w: connection URL is incomplete", ErrInvalidConnectionString)
	}
	for k, v := range u.Query() {
		cs.params[strings.ToLower(k)] = v[0]
	}
	if pw, ok := u.User.Password(); ok {
		cs.params["password"] = pw
	}
	cs.u = u
	return cs, nil
}

func (c connString) has(key string) bool {
	_, ok := c.params[key]
	return ok
}

// withSchema renders the connection string with search_path pointing at
// schema unless one is already set.
func (c connString) withSchema(schema string) string {
	if c.u != nil {
		u := *c.u
		if !c.has("search_path") {
			q := u.Query()
			q.Set("search_path", schema)
			u.RawQuery = q.Encode()
		}
		return u.String()
	}
	out := strings.Join(c.fields, " ")
	if !c.has("search_path") {
		out += " search_path=" + schema
	}
	return out
}

// CheckConnString validates raw and applies the credential policy: a password
// is only accepted when the string was read from a secret store.
func CheckConnString(raw string, fromSecret bool) error {
	cs, err := parseConnString(raw)
	if err != nil {
		return err
	}
	if cs.has("password") && !fromSecret {
		return ErrEmbeddedCredentials
	}
	return nil
}
