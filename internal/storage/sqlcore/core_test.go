package sqlcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/podcheck/internal/models"
)

func TestRebind(t *testing.T) {
	pg := New(nil, Postgres)
	lite := New(nil, SQLite)

	q := "UPDATE t SET a = ? WHERE b = ? AND c = ?"
	assert.Equal(t, "UPDATE t SET a = $1 WHERE b = $2 AND c = $3", pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
	assert.Equal(t, " FOR UPDATE", pg.forUpdate())
	assert.Empty(t, lite.forUpdate())
}

func TestFrequencyEncoding(t *testing.T) {
	freq := models.SpecificWeekdays(time.Friday, time.Monday)
	days, err := encodeWeekdays(freq.Weekdays)
	require.NoError(t, err)
	assert.Equal(t, "[1,5]", days)

	got, err := decodeFrequency(string(freq.Kind), days)
	require.NoError(t, err)
	assert.Equal(t, freq, got)

	daily, err := decodeFrequency("DAILY", "[]")
	require.NoError(t, err)
	assert.Equal(t, models.Daily(), daily)

	_, err = decodeFrequency("SPECIFIC_WEEKDAYS", "not json")
	assert.Error(t, err)
}

func TestMillisZeroValue(t *testing.T) {
	assert.Zero(t, toMillis(time.Time{}))
	assert.True(t, fromMillis(0).IsZero())

	ts := time.Date(2026, 3, 8, 8, 30, 0, 0, time.UTC)
	assert.True(t, fromMillis(toMillis(ts)).Equal(ts))
}
