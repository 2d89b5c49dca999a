package redact_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/phrazzld/tasktrack/internal/redact"
	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
		{
			name:     "nothing sensitive",
			input:    "task status changed concurrently",
			expected: "task status changed concurrently",
		},
		{
			name:     "postgres url",
			input:    "failed to connect to postgres://app:hunter22@db",
			expected: "failed to connect to [REDACTED_CREDENTIAL]db",
		},
		{
			name:     "password field",
			input:    "dsn user=app password=hunter22 sslmode=disable",
			expected: "dsn user=app [REDACTED_CREDENTIAL] sslmode=disable",
		},
		{
			name:     "sqlite dsn",
			input:    "open file:tasks.db?_pragma=foreign_keys(1) failed: locked",
			expected: "open [REDACTED_PATH] failed: locked",
		},
		{
			name:     "sql statement",
			input:    "exec failed: UPDATE tasks SET status = $1",
			expected: "exec failed: [REDACTED_SQL]",
		},
		{
			name:     "unix path",
			input:    "cannot write /var/lib/tasktrack/tasks.db",
			expected: "cannot write [REDACTED_PATH]",
		},
		{
			name:     "host and port",
			input:    "dial tcp db.internal.example.com:5432: refused",
			expected: "dial tcp [REDACTED_HOST]: refused",
		},
		{
			name:     "ip address",
			input:    "dial tcp 10.0.0.12:5432: refused",
			expected: "dial tcp [REDACTED_HOST]: refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, redact.String(tt.input))
		})
	}
}

func TestError(t *testing.T) {
	assert.Equal(t, "", redact.Error(nil))

	err := fmt.Errorf("list tasks: %w", errors.New("query SELECT id FROM tasks failed"))
	got := redact.Error(err)
	assert.NotContains(t, got, "SELECT")
	assert.Contains(t, got, redact.RedactedSQLPlaceholder)
}
