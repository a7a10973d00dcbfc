package lifecycle

// Subsystem is the lifecycle contract each dependent block of the device
// exposes to the orchestration core. The core only ever calls these hooks; it
// never reaches into a subsystem's internals.
type Subsystem interface {
	// PreReset quiesces the subsystem before a hard reset.
	PreReset()
	// PostReset brings the subsystem back up after a hard reset.
	PostReset() error
	// Suspend releases hardware state ahead of a power-down.
	Suspend()
	// Resume restores hardware state after a power-up.
	Resume() error
	// Unplug tears the subsystem down permanently. The device is gone;
	// no register access is possible.
	Unplug()
}

// Firmware is the onboard-firmware subsystem. Its pre-reset hook takes a
// forced variant because a crashed firmware cannot be asked to quiesce
// cooperatively, and its post-reset failure is the one unrecoverable hook
// failure in the system.
type Firmware interface {
	PreReset(force bool)
	PostReset() error
	Suspend()
	Resume() error
	Unplug()
}

// Subsystems collects the dependent blocks the device drives. Nil fields are
// replaced with no-op implementations.
type Subsystems struct {
	Core      Subsystem
	MMU       Subsystem
	Firmware  Firmware
	Scheduler Subsystem
}

func (s Subsystems) withDefaults() Subsystems {
	if s.Core == nil {
		s.Core = NopSubsystem{}
	}
	if s.MMU == nil {
		s.MMU = NopSubsystem{}
	}
	if s.Firmware == nil {
		s.Firmware = NopFirmware{}
	}
	if s.Scheduler == nil {
		s.Scheduler = NopSubsystem{}
	}
	return s
}

// FrequencyScaler is the interposed frequency-scaling step of power
// transitions. Its suspend failure is recoverable: the transition reverts.
type FrequencyScaler interface {
	Suspend() error
	Resume() error
}

// ClockController drives the device's clock and power domains. The core clock
// is enabled before any auxiliary clocks and everything is disabled together.
type ClockController interface {
	EnableCore() error
	EnableAux() error
	Disable()
}

// NopSubsystem is a Subsystem with no behavior, for bring-up tools and tests.
type NopSubsystem struct{}

func (NopSubsystem) PreReset()        {}
func (NopSubsystem) PostReset() error { return nil }
func (NopSubsystem) Suspend()         {}
func (NopSubsystem) Resume() error    { return nil }
func (NopSubsystem) Unplug()          {}

// NopFirmware is a Firmware with no behavior.
type NopFirmware struct{}

func (NopFirmware) PreReset(bool)    {}
func (NopFirmware) PostReset() error { return nil }
func (NopFirmware) Suspend()         {}
func (NopFirmware) Resume() error    { return nil }
func (NopFirmware) Unplug()          {}

// NopClocks is a ClockController with no behavior.
type NopClocks struct{}

func (NopClocks) EnableCore() error { return nil }
func (NopClocks) EnableAux() error  { return nil }
func (NopClocks) Disable()          {}

// NopScaler is a FrequencyScaler with no behavior.
type NopScaler struct{}

func (NopScaler) Suspend() error { return nil }
func (NopScaler) Resume() error  { return nil }

var (
	_ Subsystem       = NopSubsystem{}
	_ Firmware        = NopFirmware{}
	_ ClockController = NopClocks{}
	_ FrequencyScaler = NopScaler{}
)
