package clock

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	cases := map[string]Range{
		"today":  Today,
		"TODAY":  Today,
		"week":   Week,
		"all":    All,
		"":       All,
		"month":  All,
		" week ": Week,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseRange(in), "input %q", in)
	}
}

func TestRangeSince(t *testing.T) {
	now := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)

	t.Run("today starts at UTC midnight", func(t *testing.T) {
		since := Today.Since(now)
		require.NotNil(t, since)
		assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), since.Time())
	})

	t.Run("today uses the UTC day for zoned input", func(t *testing.T) {
		zone := time.FixedZone("UTC+5", 5*3600)
		local := time.Date(2024, 3, 11, 2, 0, 0, 0, zone) // 21:00 UTC on the 10th
		since := Today.Since(local)
		require.NotNil(t, since)
		assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), since.Time())
	})

	t.Run("week is a rolling seven days", func(t *testing.T) {
		since := Week.Since(now)
		require.NotNil(t, since)
		assert.Equal(t, now.Add(-7*24*time.Hour), since.Time())
	})

	t.Run("all is unbounded", func(t *testing.T) {
		assert.Nil(t, All.Since(now))
	})
}

func TestPeriodKey(t *testing.T) {
	ts := time.Date(2024, 3, 10, 9, 59, 59, 0, time.UTC)
	assert.Equal(t, "09:00", Today.PeriodKey(ts))
	assert.Equal(t, "2024-03-10", Week.PeriodKey(ts))
	assert.Equal(t, "2024-03-10", All.PeriodKey(ts))

	zoned := time.Date(2024, 3, 11, 1, 0, 0, 0, time.FixedZone("X", 3*3600))
	assert.Equal(t, "2024-03-10", All.PeriodKey(zoned))
	assert.Equal(t, "22:00", Today.PeriodKey(zoned))
}

func TestStampJSON(t *testing.T) {
	s := FromTime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-02T03:04:05Z"`, string(out))

	inputs := []string{
		`"2024-01-02T03:04:05Z"`,
		`"2024-01-02T06:04:05+03:00"`,
		`"2024-01-02 03:04:05"`,
		`1704164645000`,
	}
	for _, in := range inputs {
		var got Stamp
		require.NoError(t, json.Unmarshal([]byte(in), &got), in)
		assert.Equal(t, s, got, in)
	}

	var bad Stamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &bad))
}

func TestStampOrderingMatchesTime(t *testing.T) {
	early := FromTime(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))
	late := FromTime(time.Date(2024, 1, 2, 10, 0, 0, 0, time.FixedZone("X", 3600)))
	// 10:00+01:00 is 09:00 UTC
	assert.Equal(t, early, late)
	assert.True(t, early.Add(time.Millisecond) > late)
}

func TestFixed(t *testing.T) {
	at := time.Date(2024, 5, 5, 5, 5, 5, 0, time.FixedZone("X", 7200))
	c := Fixed(at)
	assert.Equal(t, time.UTC, c.Now().Location())
	assert.True(t, at.Equal(c.Now()))
	assert.Equal(t, FromTime(at), NowStamp(c))
}
