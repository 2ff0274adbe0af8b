package envfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{
			name:     "plain assignment",
			input:    "MOTHERDUCK_TOKEN=abc123\n",
			expected: map[string]string{"MOTHERDUCK_TOKEN": "abc123"},
		},
		{
			name:     "export prefix",
			input:    "export MOTHERDUCK_TOKEN=abc123\n",
			expected: map[string]string{"MOTHERDUCK_TOKEN": "abc123"},
		},
		{
			name:     "double quoted value",
			input:    `TOKEN="quoted value"` + "\n",
			expected: map[string]string{"TOKEN": "quoted value"},
		},
		{
			name:     "single quoted value",
			input:    "TOKEN='quoted'\n",
			expected: map[string]string{"TOKEN": "quoted"},
		},
		{
			name:     "comments and blanks ignored",
			input:    "# comment\n\nA=1\n   \nB=2\n",
			expected: map[string]string{"A": "1", "B": "2"},
		},
		{
			name:     "line without equals skipped",
			input:    "not an assignment\nA=1\n",
			expected: map[string]string{"A": "1"},
		},
		{
			name:     "empty key skipped",
			input:    "=value\nA=1\n",
			expected: map[string]string{"A": "1"},
		},
		{
			name:     "value containing equals kept intact",
			input:    "DSN=md:db?token=xyz\n",
			expected: map[string]string{"DSN": "md:db?token=xyz"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, values)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	values, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestApplySetsUnsetKeys(t *testing.T) {
	key := "QUACKBENCH_TEST_UNSET"
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	require.NoError(t, Apply(map[string]string{key: "from-file"}))
	assert.Equal(t, "from-file", os.Getenv(key))
}

func TestApplyNeverOverridesExistingEnv(t *testing.T) {
	key := "QUACKBENCH_TEST_EXISTING"
	t.Setenv(key, "from-process")

	require.NoError(t, Apply(map[string]string{key: "from-file"}))
	assert.Equal(t, "from-process", os.Getenv(key))
}

func TestLoadAndApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("MOTHERDUCK_TOKEN=abc123\n"), 0o600))

	key := "MOTHERDUCK_TOKEN"
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	require.NoError(t, LoadAndApply(path))
	assert.Equal(t, "abc123", os.Getenv(key))
}
