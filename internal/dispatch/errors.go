package dispatch

import "errors"

// Sentinel errors for the taxonomy in spec §7. Lower layers (transport,
// pubsub, statestore) return their own errors; the task boundary that
// owns policy for a given class wraps them with the matching sentinel
// via fmt.Errorf("%w: ...", ...) and classifies with errors.Is before
// picking a metric or a recovery action, mirroring mapErrToMetric.
var (
	ErrProtocol               = errors.New("protocol_error")
	ErrCarrier                = errors.New("carrier_error")
	ErrMailboxClosed          = errors.New("mailbox_closed")
	ErrBus                    = errors.New("bus_error")
	ErrStore                  = errors.New("store_error")
	ErrIllegalStateTransition = errors.New("illegal_state_transition")
)
