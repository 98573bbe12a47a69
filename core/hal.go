package core

// Hardware abstraction layer shared by the motion engine, drivers and
// plugins. Plugins decorate the step-path hooks and event chains; every
// decorator saves the handler it replaces and forwards to it, and removal
// reinstates that exact handler.

import (
	"sync/atomic"
)

// DriverCaps are machine-level capability flags derived from the selected
// driver. Mutated only from the foreground context.
type DriverCaps struct {
	LaserPPIMode bool // Selected spindle supports distance-triggered pulsed firing
}

// Step-path hook signatures
type (
	WakeUpFunc     func()
	PulseStartFunc func(st *Stepper)
)

// StepperHooks are the two hook slots on the step generation path. Handler
// swaps are single atomic publishes: a step event observes either the fully
// installed or the fully removed hook, never a partial state.
type StepperHooks struct {
	wakeUp     atomic.Pointer[WakeUpFunc]
	pulseStart atomic.Pointer[PulseStartFunc]
}

// WakeUp raises the segment-start event.
func (s *StepperHooks) WakeUp() {
	if f := s.wakeUp.Load(); f != nil {
		(*f)()
	}
}

// PulseStart raises the per-step event. Runs in the step interrupt context.
func (s *StepperHooks) PulseStart(st *Stepper) {
	if f := s.pulseStart.Load(); f != nil {
		(*f)(st)
	}
}

// SwapWakeUp installs f, returning the previously installed handler.
func (s *StepperHooks) SwapWakeUp(f WakeUpFunc) WakeUpFunc {
	prev := s.wakeUp.Load()
	s.wakeUp.Store(&f)
	if prev == nil {
		return nil
	}
	return *prev
}

// RestoreWakeUp reinstates a handler returned by SwapWakeUp.
func (s *StepperHooks) RestoreWakeUp(f WakeUpFunc) {
	if f == nil {
		s.wakeUp.Store(nil)
		return
	}
	s.wakeUp.Store(&f)
}

// SwapPulseStart installs f, returning the previously installed handler.
func (s *StepperHooks) SwapPulseStart(f PulseStartFunc) PulseStartFunc {
	prev := s.pulseStart.Load()
	s.pulseStart.Store(&f)
	if prev == nil {
		return nil
	}
	return *prev
}

// RestorePulseStart reinstates a handler returned by SwapPulseStart.
func (s *StepperHooks) RestorePulseStart(f PulseStartFunc) {
	if f == nil {
		s.pulseStart.Store(nil)
		return
	}
	s.pulseStart.Store(&f)
}

// HAL is the shared hardware abstraction table. A single instance lives for
// the whole process; plugins receive it at init and register their hooks on
// it.
type HAL struct {
	Stepper    StepperHooks
	DriverCaps DriverCaps
	Events     Events

	// ClaimLaserPPI lets a driver implement pulsed firing in hardware.
	// When set and returning true, the software pulse scheduler stays
	// uninstalled. rate == 0 releases the claim.
	ClaimLaserPPI func(rate uint16, pulseUS uint32) bool

	spindle *Spindle
}

// NewHAL creates an empty HAL table.
func NewHAL() *HAL {
	return &HAL{}
}

// SelectSpindle makes s the active driver and notifies the spindle-selected
// chain so plugins can re-evaluate capabilities.
func (h *HAL) SelectSpindle(s *Spindle) {
	h.spindle = s
	h.Events.SpindleSelected(s)
}

// Spindle returns the active driver, nil when none is selected.
func (h *HAL) Spindle() *Spindle {
	return h.spindle
}

// DriverReset runs the driver-reset chain. Called on machine reset (soft
// reset or alarm recovery) after the driver has reinitialized its outputs.
func (h *HAL) DriverReset() {
	h.Events.DriverReset()
}
