package lifecycle

import (
	"errors"
	"fmt"
)

// PowerState is the device's full-device power state. Transitions only follow
// the cycle Suspended → Resuming → Active → Suspending → Suspended.
type PowerState int32

const (
	Suspended PowerState = iota
	Resuming
	Active
	Suspending
)

func (s PowerState) String() string {
	switch s {
	case Suspended:
		return "suspended"
	case Resuming:
		return "resuming"
	case Active:
		return "active"
	case Suspending:
		return "suspending"
	default:
		return fmt.Sprintf("powerstate(%d)", int32(s))
	}
}

var (
	// ErrInvalidState is returned when a transition is requested from the
	// wrong power state. The request has no side effects.
	ErrInvalidState = errors.New("lifecycle: operation not valid in current power state")

	// ErrUnplugged is returned by operations on a permanently removed
	// device. It matches ErrInvalidState under errors.Is, since an
	// unplugged device can never satisfy a transition precondition again.
	ErrUnplugged = fmt.Errorf("lifecycle: device unplugged: %w", ErrInvalidState)
)
