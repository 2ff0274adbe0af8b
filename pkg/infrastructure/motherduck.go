package infrastructure

import (
	"fmt"
	"net/url"
	"strings"
)

// Settings carries the per-connection resource limits forwarded to the
// engine as DSN parameters.
type Settings struct {
	Token              string
	Threads            int
	MaxMemoryMB        int
	TempDirectory      string
	ExtensionDirectory string
}

// BuildDSN assembles a MotherDuck DSN of the form
// md:<database>?motherduck_token=...&threads=...&max_memory=...MB.
// An empty database connects to the account root.
func BuildDSN(database string, settings Settings) string {
	q := url.Values{}
	if settings.Token != "" {
		q.Set("motherduck_token", settings.Token)
	}
	if settings.Threads > 0 {
		q.Set("threads", fmt.Sprintf("%d", settings.Threads))
	}
	if settings.MaxMemoryMB > 0 {
		q.Set("max_memory", fmt.Sprintf("%dMB", settings.MaxMemoryMB))
	}
	if settings.TempDirectory != "" {
		q.Set("temp_directory", settings.TempDirectory)
	}
	if settings.ExtensionDirectory != "" {
		q.Set("extension_directory", settings.ExtensionDirectory)
	}

	dsn := "md:" + database
	if encoded := q.Encode(); encoded != "" {
		dsn += "?" + encoded
	}
	return dsn
}

// MaskDSN hides the token but keeps enough of the string to be
// recognisable in logs.
func MaskDSN(dsn string) string {
	base, query, found := strings.Cut(dsn, "?")
	if !found {
		return dsn
	}
	q, err := url.ParseQuery(query)
	if err != nil {
		// Unparseable query string, mask everything after the path.
		return base + "?***"
	}
	for key := range q {
		if isSensitiveKey(key) {
			q.Set(key, "*****")
		}
	}
	return base + "?" + q.Encode()
}

// isSensitiveKey reports whether a query key should have its value masked.
func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	switch {
	case strings.Contains(key, "pass"),
		strings.Contains(key, "token"),
		strings.Contains(key, "secret"),
		strings.HasSuffix(key, "key"):
		return true
	default:
		return false
	}
}
