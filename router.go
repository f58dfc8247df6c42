package core

import (
	"log/slog"
	"sync"
	"time"

	can "github.com/fieldbus-go/conet/pkg/can"
)

// Frame is the CAN frame type shared by every layer of the stack. It is an
// alias of can.Frame so that driver implementations in pkg/can and the
// protocol services above Router operate on the exact same value.
type Frame = can.Frame

// Bus is the driver-facing interface: something that can send a Frame and
// that the router can subscribe to for reception. Concrete drivers live
// under pkg/can (socketcan, virtual, ...) and are registered with
// can.RegisterInterface.
type Bus = can.Bus

func NewFrame(id uint32, flags uint8, dlc uint8) Frame {
	return can.NewFrame(id, flags, dlc)
}

type receiver struct {
	id       uint64
	pattern  uint32
	mask     uint32
	rtr      bool
	handler  can.FrameListener
	removed  bool
}

// Router owns the set of frame receivers for a single CAN bus and dispatches
// every inbound frame, in arrival order, to every receiver whose
// (pattern, mask) matches the frame's id: a receiver fires iff
// (frame.ID & mask) == (pattern & mask).
//
// Router also implements can.FrameListener so that it can be handed
// directly to a Bus.Subscribe call; this is the single entry point for all
// inbound CAN traffic into the stack.
//
// A handler may register or unregister receivers other than the one
// currently firing. Unregistering the receiver that is currently firing is
// legal and simply means no further handlers are invoked for that
// particular match pass; it takes effect on the next frame.
type Router struct {
	logger *slog.Logger
	mu     sync.Mutex
	bus    Bus
	// receivers are appended in registration order and walked in that same
	// order on every delivered frame, which is what gives Router its
	// deterministic dispatch order.
	receivers  []*receiver
	nextSubId  uint64
	canError   uint16
	onDispatch func(time.Duration)
	// dispatchMu is the single-logical-thread boundary: Handle holds it for
	// the entire walk over receivers, and the TimerWheel's dispatch lock
	// (wired below) takes it around every fired callback, so a timer
	// expiry body and a frame handler body are never running at once.
	dispatchMu sync.Mutex
	timers     *TimerWheel
}

// SetDispatchObserver registers a callback invoked once per Handle call with
// the wall-clock time spent walking receivers for that frame. Passing nil
// disables observation; this is how Network.SetMetrics wires the router
// dispatch histogram without the router importing a metrics package itself.
func (r *Router) SetDispatchObserver(fn func(time.Duration)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDispatch = fn
}

func NewRouter(bus Bus) *Router {
	r := &Router{
		bus:    bus,
		logger: slog.Default(),
	}
	r.timers = NewTimerWheel()
	r.timers.SetDispatchLock(func(fire func()) {
		r.dispatchMu.Lock()
		defer r.dispatchMu.Unlock()
		fire()
	})
	return r
}

// Timers returns the router's shared TimerWheel. Every protocol service
// that needs a retransmission, inhibit, event or session timeout
// schedules it here instead of spawning its own *time.Timer.
func (r *Router) Timers() *TimerWheel {
	return r.timers
}

// Handle implements can.FrameListener. It is the single point where
// inbound frames enter the stack; reception on different buses is
// serialized because each bus gets its own Router instance and the caller
// (the single-threaded embedder loop) never calls Handle re-entrantly.
func (r *Router) Handle(frame Frame) {
	start := time.Now()
	// Hold dispatchMu for the whole walk so that no TimerWheel callback
	// (see SetDispatchLock above) can run concurrently with it.
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	r.mu.Lock()
	// Snapshot so that receivers added by a handler mid-dispatch are not
	// invoked for this frame, and so a handler can safely unregister
	// itself or another receiver without corrupting the walk.
	snapshot := make([]*receiver, len(r.receivers))
	copy(snapshot, r.receivers)
	onDispatch := r.onDispatch
	r.mu.Unlock()

	isRtr := frame.Flags&0x40 != 0 // RTR flag, mirrors can.RtrFlag semantics on Flags byte
	for _, sub := range snapshot {
		r.mu.Lock()
		removed := sub.removed
		r.mu.Unlock()
		if removed {
			continue
		}
		if sub.rtr != isRtr {
			continue
		}
		if (frame.ID & sub.mask) != (sub.pattern & sub.mask) {
			continue
		}
		sub.handler.Handle(frame)
		// A receiver that unregistered itself ends the pass for this frame
		r.mu.Lock()
		removedSelf := sub.removed
		r.mu.Unlock()
		if removedSelf {
			break
		}
	}
	if onDispatch != nil {
		onDispatch(time.Since(start))
	}
}

// SetBus swaps the underlying Bus used for Send. Subscriptions are not
// re-issued to the new bus; callers are expected to Subscribe the Router to
// it themselves (Network.Connect does this).
func (r *Router) SetBus(bus Bus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bus = bus
}

func (r *Router) Bus() Bus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bus
}

// Send never blocks; it defers directly to the driver callback and
// reports whatever error the driver returned.
func (r *Router) Send(frame Frame) error {
	bus := r.Bus()
	if bus == nil {
		return ErrInvalidState
	}
	err := bus.Send(frame)
	if err != nil {
		r.logger.Warn("error sending frame", "err", err)
	}
	return err
}

// Subscribe registers handler to fire for every frame where
// (id & mask) == (pattern & mask). It returns a cancel function that
// unregisters the receiver; calling cancel from inside the handler being
// dispatched is safe (see Handle).
func (r *Router) Subscribe(pattern uint32, mask uint32, rtr bool, handler can.FrameListener) (cancel func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSubId++
	sub := &receiver{
		id:      r.nextSubId,
		pattern: pattern,
		mask:    mask,
		rtr:     rtr,
		handler: handler,
	}
	r.receivers = append(r.receivers, sub)

	cancel = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		sub.removed = true
		for i, s := range r.receivers {
			if s.id == sub.id {
				r.receivers = append(r.receivers[:i], r.receivers[i+1:]...)
				return
			}
		}
	}
	return cancel, nil
}

// Unsubscribe removes every receiver currently registered for the exact
// given (pattern, mask, rtr) tuple. Most callers should prefer the cancel
// function returned by Subscribe; Unsubscribe exists for services that
// reconfigure a COB-ID and need to drop a receiver they did not keep a
// handle to.
func (r *Router) Unsubscribe(pattern uint32, mask uint32, rtr bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.receivers[:0]
	for _, s := range r.receivers {
		if s.pattern == pattern && s.mask == mask && s.rtr == rtr {
			s.removed = true
			continue
		}
		kept = append(kept, s)
	}
	r.receivers = kept
}

// Process updates the router's view of the bus error state. It does not
// drive retransmission: Send is non-blocking and the driver is responsible
// for its own queuing.
func (r *Router) Process() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canError = 0
	return nil
}

func (r *Router) Error() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canError
}

// Stop cancels every timer scheduled on the router's TimerWheel and
// halts its background dispatcher. Services registered on this router
// (SDO sessions, NMT heartbeat, PDO timers, ...) should be stopped first
// so their in-flight timers are cancelled individually; this is the
// final step that tears down the wheel itself.
func (r *Router) Stop() {
	r.timers.Stop()
}
