package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskFilterNormalize(t *testing.T) {
	tests := []struct {
		name   string
		in     TaskFilter
		offset int
		limit  int
	}{
		{"zero_value", TaskFilter{}, 0, DefaultListLimit},
		{"negative_offset", TaskFilter{Offset: -5, Limit: 3}, 0, 3},
		{"negative_limit", TaskFilter{Limit: -1}, 0, DefaultListLimit},
		{"over_max", TaskFilter{Offset: 20, Limit: 1000}, 20, MaxListLimit},
		{"in_range", TaskFilter{Offset: 2, Limit: 50}, 2, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.offset, got.Offset)
			assert.Equal(t, tt.limit, got.Limit)
		})
	}
}

func TestTaskFilterNormalizeKeepsCriteria(t *testing.T) {
	f := TaskFilter{Title: "Report", Status: "pending"}.Normalize()
	assert.Equal(t, "Report", f.Title)
	assert.Equal(t, "pending", string(f.Status))
}

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "%%"},
		{"report", "%report%"},
		{"100%", `%100\%%`},
		{"a_b", `%a\_b%`},
		{`c:\tmp`, `%c:\\tmp%`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContainsPattern(tt.in), tt.in)
	}
}
