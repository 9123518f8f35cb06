package registry

import "strings"

// Credential is an opaque signing secret.
type Credential string

// DefaultCredential stands in for "no explicit credential"; the executor
// substitutes its configured default key.
const DefaultCredential Credential = ""

// IsDefault reports whether c is the DefaultCredential sentinel.
func (c Credential) IsDefault() bool {
	return c == DefaultCredential
}

// Redacted returns a short prefix that is safe to log.
func (c Credential) Redacted() string {
	if c.IsDefault() {
		return "default"
	}
	s := strings.TrimPrefix(string(c), "0x")
	if len(s) <= 6 {
		return "****"
	}
	return s[:6] + "..."
}

// ParseCredentials splits a comma-separated credential list, dropping blanks
// and repeats while keeping the first-seen order.
func ParseCredentials(raw string) []Credential {
	seen := make(map[string]bool)
	var out []Credential
	for _, field := range strings.Split(raw, ",") {
		v := strings.TrimSpace(field)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, Credential(v))
	}
	return out
}
