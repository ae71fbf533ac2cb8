package timefmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-01T00:00:00", Format(ts))

	ts = time.Date(2024, 1, 1, 8, 30, 15, 250_000_000, time.UTC)
	assert.Equal(t, "2024-01-01T08:30:15.25", Format(ts))
}

func TestParse(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{
		"2024-01-01T00:00:00",
		"2024-01-01 00:00:00",
		"2024-01-01T00:00:00Z",
		" 2024-01-01T00:00:00.000 ",
		"2024-01-01T02:00:00+02:00",
	} {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s parsed to %s", in, got)
	}

	_, err := Parse("yesterday")
	assert.Error(t, err)
}

func TestFormatIsSortable(t *testing.T) {
	a := Format(time.Date(2024, 1, 1, 9, 59, 59, 0, time.UTC))
	b := Format(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	assert.Less(t, a, b)
}
