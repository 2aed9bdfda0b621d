package domain

import "net/url"

// RedactURL strips userinfo (tokens, passwords) from a repository URL so
// it can appear in logs and error messages. Unparseable input is returned
// unchanged; it cannot contain parsed userinfo.
func RedactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	parsed.User = nil
	return parsed.String()
}
