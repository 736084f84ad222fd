package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpanActiveAt(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)
	later := now.Add(time.Hour)

	tests := []struct {
		name     string
		span     Span
		at       time.Time
		expected bool
	}{
		{
			name:     "open ended span is active",
			span:     Span{Start: earlier},
			at:       now,
			expected: true,
		},
		{
			name:     "future start is not active",
			span:     Span{Start: later},
			at:       now,
			expected: false,
		},
		{
			name:     "permanent span ignores end",
			span:     Span{Start: earlier, End: &earlier, IsPermanent: true},
			at:       now,
			expected: true,
		},
		{
			name:     "end in the future is active",
			span:     Span{Start: earlier, End: &later},
			at:       now,
			expected: true,
		},
		{
			name:     "end exactly at reference time is still active",
			span:     Span{Start: earlier, End: &now},
			at:       now,
			expected: true,
		},
		{
			name:     "end in the past is not active",
			span:     Span{Start: earlier.Add(-time.Hour), End: &earlier},
			at:       now,
			expected: false,
		},
		{
			name:     "start exactly at reference time is active",
			span:     Span{Start: now},
			at:       now,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.span.ActiveAt(tt.at))
		})
	}
}

func TestSpanClose(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	span := Span{Start: now.Add(-time.Hour), IsPermanent: true}
	span.Close(now)

	require.False(t, span.IsPermanent)
	require.NotNil(t, span.End)
	require.Equal(t, now, *span.End)
	require.False(t, span.ActiveAt(now.Add(time.Second)))
}

func TestSpanDurationDisplay(t *testing.T) {
	end := time.Date(2026, 3, 10, 17, 30, 0, 0, time.UTC)

	require.Equal(t, "Permanent", Span{IsPermanent: true}.DurationDisplay())
	require.Equal(t, "Open ended", Span{}.DurationDisplay())
	require.Equal(t, "Until Mar 10, 2026 05:30 PM", Span{End: &end}.DurationDisplay())
}
