package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomstay/internal/domain/shared/apperr"
)

func TestOverlaps_HalfOpen(t *testing.T) {
	base := MustParse("2025-07-10", "2025-07-13")

	tests := []struct {
		name  string
		other DateRange
		want  bool
	}{
		{"back to back after", MustParse("2025-07-13", "2025-07-15"), false},
		{"back to back before", MustParse("2025-07-08", "2025-07-10"), false},
		{"last night shared", MustParse("2025-07-12", "2025-07-14"), true},
		{"contained", MustParse("2025-07-11", "2025-07-12"), true},
		{"enclosing", MustParse("2025-07-01", "2025-07-30"), true},
		{"identical", base, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base))
		})
	}
}

func TestNew_NormalizesToCalendarDates(t *testing.T) {
	in := time.Date(2025, 7, 10, 17, 45, 0, 0, time.UTC)
	out := time.Date(2025, 7, 13, 9, 0, 0, 0, time.UTC)
	dr, err := New(in, out)
	require.NoError(t, err)
	assert.Equal(t, 3, dr.Nights())
	assert.Equal(t, "[2025-07-10, 2025-07-13)", dr.String())
	assert.Len(t, dr.EachNight(), 3)
	assert.True(t, dr.ContainsDate(in))
	assert.False(t, dr.ContainsDate(out))
}

func TestNew_RejectsEmptyAndInverted(t *testing.T) {
	_, err := Parse("2025-07-10", "2025-07-10")
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = Parse("2025-07-10", "2025-07-09")
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = Parse("2025-13-10", "2025-07-09")
	assert.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestNights_CountsCalendarDays(t *testing.T) {
	cases := []struct {
		in, out string
		want    int
	}{
		{"2025-07-10", "2025-07-11", 1},
		{"2024-02-28", "2024-03-01", 2},
		{"1969-12-30", "1970-01-02", 3},
		{"1900-01-01", "2300-01-01", 146097},
	}
	for _, tc := range cases {
		dr := MustParse(tc.in, tc.out)
		assert.Equal(t, tc.want, dr.Nights(), dr.String())
	}

	long := MustParse("1900-01-01", "2300-01-01")
	assert.Len(t, long.EachNight(), long.Nights())
}
