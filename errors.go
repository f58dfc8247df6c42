package core

import "errors"

var (
	ErrIllegalArgument       = errors.New("error in function arguments")
	ErrOutOfMemory           = errors.New("memory allocation failed")
	ErrTimeout               = errors.New("function timeout")
	ErrIllegalBaudrate       = errors.New("illegal baudrate passed to function")
	ErrOdParameters          = errors.New("error in object dictionary parameters")
	ErrWrongNMTState         = errors.New("command can't be processed in the current state")
	ErrInvalidState          = errors.New("driver not ready")
	ErrNodeIdUnconfiguredLSS = errors.New("node-id is in LSS unconfigured state")
)

// IsIDRestricted reports whether a CAN-id falls into one of the ranges
// reserved by CiA 301 for predefined connection set objects (NMT, SYNC,
// TIME, EMCY, SDO, heartbeat) and therefore should not be accepted as a
// user-configurable COB-ID.
func IsIDRestricted(canId uint16) bool {
	return canId <= 0x7f ||
		(canId >= 0x101 && canId <= 0x180) ||
		(canId >= 0x581 && canId <= 0x5FF) ||
		(canId >= 0x601 && canId <= 0x67F) ||
		(canId >= 0x6E0 && canId <= 0x6FF) ||
		canId >= 0x701
}

// Re-exported CAN bus error flags, kept at this level so EMCY and other
// services that report bus errors do not need to import pkg/can directly
// just for these constants.
const (
	CanErrorTxWarning  = 0x0001
	CanErrorTxPassive  = 0x0002
	CanErrorTxBusOff   = 0x0004
	CanErrorTxOverflow = 0x0008
	CanErrorPdoLate    = 0x0080
	CanErrorRxWarning  = 0x0100
	CanErrorRxPassive  = 0x0200
	CanErrorRxOverflow = 0x0800
)
