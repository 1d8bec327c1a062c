package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJDNKnownDates(t *testing.T) {
	assert.Equal(t, 2451545, JDN(2000, 1, 1))
	assert.Equal(t, 2460311, JDN(2024, 1, 1))
	assert.Equal(t, 2299161, JDN(1582, 10, 15))
}

func TestNightIDNoonBoundary(t *testing.T) {
	evening := NightID(20240110, 213000)
	morning := NightID(20240111, 43000)
	assert.Equal(t, evening, morning, "evening and next morning are one night")

	beforeNoon := NightID(20240111, 115959)
	atNoon := NightID(20240111, 120000)
	assert.Equal(t, morning, beforeNoon)
	assert.Equal(t, beforeNoon+1, atNoon)

	assert.Equal(t, JDN(2024, 1, 11), evening)
}

func TestNightDateIsEvening(t *testing.T) {
	n := NightID(20240229, 230000)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), NightDate(n))

	n = NightID(20240301, 30000)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), NightDate(n))
}

func TestParseKind(t *testing.T) {
	for k := All; k <= Unpublished; k++ {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("yesterday")
	require.ErrorIs(t, err, ErrBadSelector)
}

func TestParseSelector(t *testing.T) {
	tests := []struct {
		name       string
		kind       string
		start, end string
		want       Selector
		wantErr    bool
	}{
		{name: "all", kind: "all", want: SelectAll()},
		{name: "latest night", kind: "Latest-Night", want: SelectLatestNight()},
		{name: "range compact", kind: "range", start: "20240101", end: "20240131", want: SelectRange(20240101, 20240131)},
		{name: "range iso", kind: "range", start: "2024-01-01", end: "2024-01-31", want: SelectRange(20240101, 20240131)},
		{name: "range reversed", kind: "range", start: "20240131", end: "20240101", wantErr: true},
		{name: "range bad date", kind: "range", start: "20240230", end: "20240301", wantErr: true},
		{name: "unknown", kind: "fortnight", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.kind, tt.start, tt.end)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrBadSelector)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMonthID(t *testing.T) {
	assert.Equal(t, 202401, MonthID(20240131))
}
