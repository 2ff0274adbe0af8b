// Package envfile loads KEY=VALUE environment files.
//
// The format is deliberately simple: one assignment per line, an
// optional "export " prefix, optional single or double quotes around
// the value, #-comments and blank lines ignored. Loaded values never
// override variables already present in the process environment.
package envfile

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// Parse reads KEY=VALUE assignments from r in file order.
func Parse(r io.Reader) (map[string]string, error) {
	values := make(map[string]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"`)
		value = strings.Trim(value, `'`)
		if key == "" {
			continue
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

// Load parses the file at path. A missing file is not an error; it
// yields an empty map so callers can fall back to the process
// environment alone.
func Load(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Apply seeds the process environment with values, skipping any key
// that is already set. The existing environment always wins.
func Apply(values map[string]string) error {
	for key, value := range values {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return nil
}

// LoadAndApply is the common startup path: parse the file and seed the
// environment in one call.
func LoadAndApply(path string) error {
	values, err := Load(path)
	if err != nil {
		return err
	}
	return Apply(values)
}
