package handid

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := New()
	assert.Len(t, id, 26)
	require.NoError(t, Validate(id))

	seen := make(map[string]bool)
	for range 100 {
		id := New()
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
}

func TestNewIsTimeSorted(t *testing.T) {
	var ids []string
	for range 5 {
		ids = append(ids, New())
		time.Sleep(2 * time.Millisecond)
	}
	for i := 1; i < len(ids); i++ {
		assert.Negative(t, strings.Compare(ids[i-1], ids[i]), "%s >= %s", ids[i-1], ids[i])
	}
}

func TestTime(t *testing.T) {
	before := time.Now().Truncate(time.Millisecond)
	id := New()
	after := time.Now()

	ts, err := Time(id)
	require.NoError(t, err)
	assert.False(t, ts.Before(before))
	assert.False(t, ts.After(after))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"too short", "abc"},
		{"too long", strings.Repeat("0", 27)},
		{"invalid character", strings.Repeat("0", 25) + "u"},
		{"not version 7", strings.Repeat("0", 26)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Validate(tt.id))
		})
	}
}
