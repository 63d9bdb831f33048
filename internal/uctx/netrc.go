package uctx

import (
	"bufio"
	"encoding/base64"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Credential is one `machine <host> login <user> password <token>` entry.
type Credential struct {
	Machine  string
	Login    string
	Password string
}

// CredentialStore indexes Credentials by host.
type CredentialStore map[string]Credential

// LoadCredentials parses a netrc-style file at path. A missing file yields an
// empty, non-error store -- using --use-netrc without a credentials file on
// disk degrades to anonymous access rather than failing the run.
func LoadCredentials(path string) (CredentialStore, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return CredentialStore{}, nil
		}
		return nil, errors.Wrapf(err, "opening credentials file %s", path)
	}
	defer f.Close()

	store := CredentialStore{}
	var cur *Credential

	flush := func() {
		if cur != nil && cur.Machine != "" {
			store[cur.Machine] = *cur
		}
		cur = nil
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		for i := 0; i+1 < len(fields); i += 2 {
			key, value := fields[i], fields[i+1]
			switch key {
			case "machine":
				flush()
				cur = &Credential{Machine: value}
			case "login":
				if cur != nil {
					cur.Login = value
				}
			case "password":
				if cur != nil {
					cur.Password = value
				}
			}
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading credentials file %s", path)
	}
	return store, nil
}

// AuthorizationHeader renders the "Authorization: <line>" value for host, or
// ("", false) if no credential is on file for it.
func (s CredentialStore) AuthorizationHeader(host string) (string, bool) {
	c, ok := s[host]
	if !ok {
		return "", false
	}
	return "Basic " + basicAuth(c.Login, c.Password), true
}

func basicAuth(login, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(login + ":" + password))
}
