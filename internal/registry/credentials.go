package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/tidwall/jsonc"
)

// Credential holds login data for one registry host.
type Credential struct {
	Host     string
	Username string
	Password string
}

type credentialData struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoadCredentials reads registry credentials from the given file.
// The file is a JSON array of single-host objects, comments tolerated:
//
//	[
//	  // production registry
//	  {"registry.example.com": {"username": "ci", "password": "secret"}}
//	]
//
// An absent file means no private registries are involved and is not
// an error.
func LoadCredentials(path string) ([]Credential, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var entries []map[string]credentialData
	if err := json.Unmarshal(jsonc.ToJSON(raw), &entries); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	creds := make([]Credential, 0, len(entries))

	for i, entry := range entries {
		hosts := make([]string, 0, len(entry))
		for host := range entry {
			hosts = append(hosts, host)
		}

		// Each object is meant to hold a single host, but nothing enforces
		// that, so iterate in a stable order.
		sort.Strings(hosts)

		for _, host := range hosts {
			data := entry[host]

			if host == "" || data.Username == "" || data.Password == "" {
				return nil, fmt.Errorf("credentials entry %d: host, username and password are all required", i)
			}

			creds = append(creds, Credential{
				Host:     host,
				Username: data.Username,
				Password: data.Password,
			})
		}
	}

	return creds, nil
}
