package time

import (
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetInternalTime(t *testing.T) {
	now := time.Now()
	// Check that reading and setting time is precise
	now = now.Round(1 * time.Millisecond)
	timeInstance := &TIME{logger: slog.Default()}
	timeInstance.SetInternalTime(now)
	internalTime := timeInstance.InternalTime()
	timeDiff := internalTime.Sub(now)
	assert.LessOrEqual(t, math.Abs(float64(timeDiff.Milliseconds())), 2.0)
	nowPlus1Day := now.Add(24 * time.Hour)
	timeInstance.SetInternalTime(nowPlus1Day)
	timeDiff = timeInstance.InternalTime().Sub(nowPlus1Day)
	assert.LessOrEqual(t, math.Abs(float64(timeDiff.Milliseconds())), 2.0)
}

func TestSetProducerInterval(t *testing.T) {
	timeInstance := &TIME{logger: slog.Default()}
	timeInstance.SetProducerInterval(500 * time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, timeInstance.timeProducer)
}

// convertTimeToByte/convertByteToTime must round-trip: TIME frames on the
// wire carry only millisecond-since-midnight and day-since-origin, so any
// loss finer than a millisecond is expected, but a full round trip through
// both conversions should reproduce the same wall-clock instant.
func TestConvertTimeRoundTrip(t *testing.T) {
	now := time.Now().Round(time.Millisecond)
	raw := convertTimeToByte(now)
	back := convertByteToTime(raw)
	assert.WithinDuration(t, now, back, time.Millisecond)
}
