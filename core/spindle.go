package core

// Laser/spindle driver model
// Drivers advertise a capability set and expose primitive power operations.
// The PWM/RPM update entry points are swappable slots so plugins can decorate
// them while preserving the previously installed handler.

import (
	"sync/atomic"
)

// SpindleCaps is the capability set advertised by a driver.
type SpindleCaps uint16

const (
	SpindleCapLaser     SpindleCaps = 1 << iota // Device is a laser, not a rotary spindle
	SpindleCapPulseOn                           // Supports timed pulse firing
	SpindleCapPWMUpdate                         // Supports direct PWM level updates
	SpindleCapRPMUpdate                         // Supports RPM (power) updates
)

// Has reports whether all capabilities in want are present.
func (c SpindleCaps) Has(want SpindleCaps) bool {
	return c&want == want
}

// Driver entry point signatures
type (
	PulseOnFunc   func(s *Spindle, durationUS uint32)
	UpdatePWMFunc func(s *Spindle, pwm uint16)
	UpdateRPMFunc func(s *Spindle, rpm float32)
)

// SpindleConfig describes a driver implementation. Entry points left nil are
// reported as missing capabilities.
type SpindleConfig struct {
	Name      string
	Laser     bool
	PulseOn   PulseOnFunc
	UpdatePWM UpdatePWMFunc
	UpdateRPM UpdateRPMFunc
	PWM       *SpindlePWM
}

// Spindle is a registered laser/spindle driver.
type Spindle struct {
	Name string
	PWM  *SpindlePWM // PWM computation context, nil when not PWM capable

	caps      SpindleCaps
	pulseOn   PulseOnFunc
	updatePWM atomic.Pointer[UpdatePWMFunc]
	updateRPM atomic.Pointer[UpdateRPMFunc]
}

// NewSpindle creates a spindle from a driver configuration.
func NewSpindle(cfg SpindleConfig) *Spindle {
	s := &Spindle{
		Name: cfg.Name,
		PWM:  cfg.PWM,
	}

	if cfg.Laser {
		s.caps |= SpindleCapLaser
	}

	if cfg.PulseOn != nil {
		s.caps |= SpindleCapPulseOn
		s.pulseOn = cfg.PulseOn
	}

	if cfg.UpdatePWM != nil {
		s.caps |= SpindleCapPWMUpdate
		f := cfg.UpdatePWM
		s.updatePWM.Store(&f)
	}

	if cfg.UpdateRPM != nil {
		s.caps |= SpindleCapRPMUpdate
		f := cfg.UpdateRPM
		s.updateRPM.Store(&f)
	}

	return s
}

// Cap returns the driver's capability set.
func (s *Spindle) Cap() SpindleCaps {
	return s.caps
}

// PulseOn fires the laser for durationUS microseconds. No-op when the driver
// lacks pulse capability. Safe to call from the step interrupt context.
func (s *Spindle) PulseOn(durationUS uint32) {
	if s.pulseOn != nil {
		s.pulseOn(s, durationUS)
	}
}

// UpdatePWM requests a new PWM output level through the currently installed
// update chain.
func (s *Spindle) UpdatePWM(pwm uint16) {
	if f := s.updatePWM.Load(); f != nil {
		(*f)(s, pwm)
	}
}

// UpdateRPM requests a new RPM (power) level through the currently installed
// update chain.
func (s *Spindle) UpdateRPM(rpm float32) {
	if f := s.updateRPM.Load(); f != nil {
		(*f)(s, rpm)
	}
}

// SwapUpdatePWM installs f as the PWM update handler, returning the previous
// handler for chaining. The swap is a single atomic publish; a concurrent
// UpdatePWM call observes either the old or the new handler, never a partial
// install. Returns ok=false (and installs nothing) when the driver has no PWM
// update entry point.
func (s *Spindle) SwapUpdatePWM(f UpdatePWMFunc) (prev UpdatePWMFunc, ok bool) {
	p := s.updatePWM.Load()
	if p == nil {
		return nil, false
	}
	s.updatePWM.Store(&f)
	return *p, true
}

// SwapUpdateRPM installs f as the RPM update handler, returning the previous
// handler for chaining.
func (s *Spindle) SwapUpdateRPM(f UpdateRPMFunc) (prev UpdateRPMFunc, ok bool) {
	p := s.updateRPM.Load()
	if p == nil {
		return nil, false
	}
	s.updateRPM.Store(&f)
	return *p, true
}

// RestoreUpdatePWM reinstates a handler previously returned by SwapUpdatePWM.
func (s *Spindle) RestoreUpdatePWM(f UpdatePWMFunc) {
	if f != nil {
		s.updatePWM.Store(&f)
	}
}

// RestoreUpdateRPM reinstates a handler previously returned by SwapUpdateRPM.
func (s *Spindle) RestoreUpdateRPM(f UpdateRPMFunc) {
	if f != nil {
		s.updateRPM.Store(&f)
	}
}

// SpindlePWMFlags describe how the PWM output is controlled.
type SpindlePWMFlags struct {
	RPMControlled  bool // Power set via RPM while the enable signal gates output
	AlwaysOn       bool // Output stays at min value instead of off
	LaserOverdrive bool // Backend supports transient power boost
}

// SpindlePWM is the PWM computation context for a driver. It owns the
// overdrive state used to compensate for the slow response of gas-discharge
// laser tubes: the first update after an off→on transition is boosted by the
// configured percentage, subsequent updates return to the programmed level.
type SpindlePWM struct {
	Flags    SpindlePWMFlags
	Period   uint32 // PWM period in timer ticks
	OffValue uint16
	MinValue uint16
	MaxValue uint16

	overdrive float32 // boost percent, 0 = disabled
	off       bool    // output currently at off level
	onChange  func(p *SpindlePWM, percent float32)
}

// NewSpindlePWM creates a PWM context. onChange, if non-nil, is notified when
// the overdrive percentage changes.
func NewSpindlePWM(flags SpindlePWMFlags, period uint32, offValue, minValue, maxValue uint16, onChange func(p *SpindlePWM, percent float32)) *SpindlePWM {
	return &SpindlePWM{
		Flags:    flags,
		Period:   period,
		OffValue: offValue,
		MinValue: minValue,
		MaxValue: maxValue,
		off:      true,
		onChange: onChange,
	}
}

// SupportsOverdrive reports whether the overdrive command can target this
// context.
func (p *SpindlePWM) SupportsOverdrive() bool {
	return p != nil && p.Flags.LaserOverdrive
}

// SetLaserOverdrive sets the boost percentage applied on the next off→on
// transition. Setting 0 disables shaping. Negative values are clamped to 0;
// range validation belongs to the command layer.
func (p *SpindlePWM) SetLaserOverdrive(percent float32) {
	if percent < 0 {
		percent = 0
	}
	p.overdrive = percent
	if p.onChange != nil {
		p.onChange(p, percent)
	}
}

// Overdrive returns the configured boost percentage.
func (p *SpindlePWM) Overdrive() float32 {
	return p.overdrive
}

// Value computes the output compare value for a requested level, applying the
// overdrive boost on an off→on edge and the plain level at steady state.
// Called on every power update, including from the step interrupt path;
// performs no allocation.
func (p *SpindlePWM) Value(level uint16) uint16 {
	if level == 0 {
		p.off = true
		if p.Flags.AlwaysOn {
			return p.MinValue
		}
		return p.OffValue
	}

	boost := p.off && p.overdrive > 0
	p.off = false

	if !boost {
		return level
	}

	boosted := uint32(float32(level) * (1 + p.overdrive/100))
	if boosted > uint32(p.MaxValue) {
		boosted = uint32(p.MaxValue)
	}
	return uint16(boosted)
}
