package nmt

import (
	"log/slog"
	"sync"
	"time"

	core "github.com/fieldbus-go/conet"
)

// Redundancy object 0x2000 sub-indices (ECSS redundancy profile, same
// layout the source's nmt_rdn.c validates against in co_nmt_rdn_chk_dev).
const (
	RedundancyEntryIndex   uint16 = 0x2000
	RedundancySubBdefault  uint8  = 0x01
	RedundancySubTtoggle   uint8  = 0x02
	RedundancySubNtoggle   uint8  = 0x03
	RedundancySubCtoggle   uint8  = 0x04
)

// ToggleReason identifies why [Redundancy] switched the active bus.
type ToggleReason int

const (
	ToggleMasterHeartbeatMissed ToggleReason = iota
	ToggleExhausted
)

// Redundancy implements the optional bus-A/bus-B toggle manager described
// in spec.md's L5 component table: it watches the master's heartbeat on
// whichever bus is currently active and, after Ttoggle consecutive missed
// periods, switches to the other bus. Grounded on the source's
// nmt_rdn.c/.h (co_nmt_rdn_t, the Bdefault/Ttoggle/Ntoggle/Ctoggle object
// 0x2000 sub-indices) and re-expressed as a listener on this module's own
// heartbeat-consumer timeout indication instead of a dedicated CAN timer,
// since that indication already exists and a second listener path on the
// same event would just duplicate it.
type Redundancy struct {
	mu sync.Mutex

	buses        [2]*core.Router
	activeBus    uint8
	masterPeriod time.Duration

	ttoggle uint8 // missed periods before toggling
	ntoggle uint8 // max toggles before giving up, 0 = unlimited
	ctoggle uint8 // toggles performed so far
	misses  uint8 // consecutive missed periods on the active bus

	onToggle func(busID uint8, reason ToggleReason)
	logger   *slog.Logger
}

// NewRedundancy creates a manager toggling between busA (index 0) and busB
// (index 1). bdefault selects the initially-active bus (0 or 1); ttoggle is
// the number of consecutive missed master heartbeat periods that triggers a
// toggle; ntoggle caps the number of toggles performed (0 means unlimited,
// matching the source's Ntoggle == 0 convention).
func NewRedundancy(busA, busB *core.Router, logger *slog.Logger, bdefault, ttoggle, ntoggle uint8, masterPeriod time.Duration) *Redundancy {
	if logger == nil {
		logger = slog.Default()
	}
	if bdefault > 1 {
		bdefault = 0
	}
	return &Redundancy{
		buses:        [2]*core.Router{busA, busB},
		activeBus:    bdefault,
		masterPeriod: masterPeriod,
		ttoggle:      ttoggle,
		ntoggle:      ntoggle,
		logger:       logger.With("service", "[NMT-RDN]"),
	}
}

// OnToggle registers the callback invoked whenever the active bus changes,
// or when the toggle budget is exhausted (reason == ToggleExhausted, bus ID
// is the one that remains active).
func (r *Redundancy) OnToggle(fn func(busID uint8, reason ToggleReason)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onToggle = fn
}

// ActiveBus returns the Router currently designated as the redundancy
// manager's primary path.
func (r *Redundancy) ActiveBus() *core.Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buses[r.activeBus]
}

// ActiveBusID returns 0 (bus A) or 1 (bus B).
func (r *Redundancy) ActiveBusID() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeBus
}

// OnMasterHeartbeatReceived clears the consecutive-miss counter. Wire this
// to the master's heartbeat-consumer entry (see [HBConsumer.OnEvent]) on
// events other than EventTimeout.
func (r *Redundancy) OnMasterHeartbeatReceived() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.misses = 0
}

// OnMasterHeartbeatTimeout reports that the master's heartbeat consumer
// entry timed out once. If the miss count reaches ttoggle the manager
// toggles the active bus; ctoggle then counts toward ntoggle, after which
// no further toggles occur. Wire this to the master's heartbeat-consumer
// entry on EventTimeout.
func (r *Redundancy) OnMasterHeartbeatTimeout() {
	r.mu.Lock()
	if r.ntoggle != 0 && r.ctoggle >= r.ntoggle {
		r.mu.Unlock()
		return
	}
	r.misses++
	if r.misses < r.ttoggle {
		misses, ttoggle := r.misses, r.ttoggle
		r.mu.Unlock()
		r.logger.Debug("master heartbeat missed", "misses", misses, "ttoggle", ttoggle)
		return
	}

	r.misses = 0
	r.activeBus = 1 - r.activeBus
	r.ctoggle++
	newBus, ctoggle, ntoggle := r.activeBus, r.ctoggle, r.ntoggle
	exhausted := ntoggle != 0 && ctoggle >= ntoggle
	cb := r.onToggle
	r.mu.Unlock()

	r.logger.Info("toggling redundant bus", "activeBus", newBus, "toggleCount", ctoggle)
	if cb != nil {
		cb(newBus, ToggleMasterHeartbeatMissed)
	}
	if exhausted {
		r.logger.Warn("toggle budget exhausted, staying on active bus", "activeBus", newBus)
		if cb != nil {
			cb(newBus, ToggleExhausted)
		}
	}
}

// ToggleCount reports how many times the manager has switched buses.
func (r *Redundancy) ToggleCount() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctoggle
}
