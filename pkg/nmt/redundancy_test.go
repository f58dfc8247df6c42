package nmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRedundancyTogglesAfterTtoggleMisses(t *testing.T) {
	rdn := NewRedundancy(nil, nil, nil, 0, 3, 0, 100*time.Millisecond)
	assert.EqualValues(t, 0, rdn.ActiveBusID())

	var toggled []ToggleReason
	rdn.OnToggle(func(busID uint8, reason ToggleReason) {
		toggled = append(toggled, reason)
		assert.EqualValues(t, 1, busID)
	})

	rdn.OnMasterHeartbeatTimeout()
	rdn.OnMasterHeartbeatTimeout()
	assert.EqualValues(t, 0, rdn.ActiveBusID(), "must not toggle before ttoggle consecutive misses")

	rdn.OnMasterHeartbeatTimeout()
	assert.EqualValues(t, 1, rdn.ActiveBusID())
	assert.Len(t, toggled, 1)
	assert.EqualValues(t, 1, rdn.ToggleCount())
}

func TestRedundancyReceivedResetsMissCounter(t *testing.T) {
	rdn := NewRedundancy(nil, nil, nil, 0, 2, 0, 100*time.Millisecond)
	rdn.OnMasterHeartbeatTimeout()
	rdn.OnMasterHeartbeatReceived()
	rdn.OnMasterHeartbeatTimeout()
	assert.EqualValues(t, 0, rdn.ActiveBusID(), "a received heartbeat must clear the miss streak")
}

func TestRedundancyStopsAtNtoggle(t *testing.T) {
	rdn := NewRedundancy(nil, nil, nil, 0, 1, 1, 100*time.Millisecond)
	var exhausted bool
	rdn.OnToggle(func(busID uint8, reason ToggleReason) {
		if reason == ToggleExhausted {
			exhausted = true
		}
	})

	rdn.OnMasterHeartbeatTimeout()
	assert.True(t, exhausted)
	assert.EqualValues(t, 1, rdn.ToggleCount())

	rdn.OnMasterHeartbeatTimeout()
	assert.EqualValues(t, 1, rdn.ToggleCount(), "toggle budget exhausted, further misses are no-ops")
}

func TestNewRedundancyRejectsOutOfRangeDefaultBus(t *testing.T) {
	rdn := NewRedundancy(nil, nil, nil, 7, 1, 0, time.Second)
	assert.EqualValues(t, 0, rdn.ActiveBusID())
}
