package timeparsing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCompactDuration(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{input: "+6h", want: time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)},
		{input: "-1d", want: time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)},
		{input: "2w", want: time.Date(2025, 6, 29, 12, 0, 0, 0, time.UTC)},
		{input: "-3m", want: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)},
		{input: "+1y", want: time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)},
		{input: "0d", want: now},
		{input: "1x", wantErr: true},
		{input: "d", wantErr: true},
		{input: "+-1d", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCompactDuration(tt.input, now)
			if tt.wantErr {
				assert.Error(t, err)
				assert.False(t, IsCompactDuration(tt.input))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestParseCompactDurationMonthBoundary(t *testing.T) {
	// Go normalizes Jan 31 + 1 month to Mar 3 (2025 is not a leap year).
	now := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	got, err := ParseCompactDuration("+1m", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), got)
}

func TestParseRelativeTime(t *testing.T) {
	// Wednesday
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "compact", input: "+1d", want: now.AddDate(0, 0, 1)},
		{name: "date only", input: "2025-02-01", want: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		{name: "rfc3339", input: "2025-03-15T14:30:00Z", want: time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC)},
		{name: "padded", input: "  2025-02-01 ", want: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		{name: "gibberish", input: "not-a-date", wantErr: true},
		{name: "blank", input: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRelativeTime(tt.input, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestParseNaturalLanguage(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	for input, day := range map[string]int{"tomorrow": 16, "yesterday": 14} {
		got, err := ParseNaturalLanguage(input, now)
		require.NoError(t, err, input)
		assert.Equal(t, day, got.Day(), input)
		assert.Equal(t, time.January, got.Month(), input)
	}

	_, err := ParseNaturalLanguage("qwerty", now)
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	now := time.Date(2024, 6, 3, 23, 30, 0, 0, time.UTC)

	got, err := ParseDate("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate("-1d", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate("yesterday", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("zzz", now)
	assert.Error(t, err)
}
