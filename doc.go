// Package core implements the two pieces of infrastructure shared by every
// CANopen service in this module: a CAN frame router and a timer wheel.
//
// The router dispatches inbound frames to receivers registered by
// (CAN-id pattern, mask); the timer wheel (TimerWheel) is a min-heap of
// deadline-ordered, one-shot or periodic callbacks, fired either by its
// own background dispatcher or synchronously via Step(now) for embedders
// and tests that drive time themselves.
//
// Frame delivery and timer expiry are not driven from the same call
// stack - the timer wheel's dispatcher and a CAN driver's receive loop
// are ordinarily separate goroutines - so Router serializes the two
// behind a single dispatchMu: Handle holds it for its entire walk over
// receivers, and every TimerWheel callback scheduled through
// Router.Timers runs with the same lock held. That is what gives
// protocol state machines built on this package the single-logical-
// thread guarantee spec.md §5 describes, without each service having to
// take its own lock around a timer callback racing its frame handler.
package core
