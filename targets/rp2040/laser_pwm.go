//go:build rp2040

package main

// Hardware PWM laser power driver for RP2040

import (
	"machine"

	"laserhal/core"
)

// Power scale exposed to the modulation core
const (
	LaserPWMMax = 1000 // Resolution of the programmed power value
	LaserMaxRPM = 1000 // RPM value mapping to full power
)

// pwmPeripheral is an interface for PWM hardware peripherals
// This abstracts over TinyGo's unexported *pwmGroup type
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

// RP2040LaserDriver drives laser power through one hardware PWM slice. The
// fire pulse itself is delegated to the PIO backend.
type RP2040LaserDriver struct {
	pwm     pwmPeripheral
	channel uint8
	pulse   *PIOPulseBackend
	ctx     *core.SpindlePWM
}

// NewRP2040LaserDriver configures pwm for the given pin and period.
func NewRP2040LaserDriver(pwm pwmPeripheral, pin machine.Pin, periodNS uint64, pulse *PIOPulseBackend) (*RP2040LaserDriver, error) {
	if err := pwm.Configure(machine.PWMConfig{Period: periodNS}); err != nil {
		return nil, err
	}

	ch, err := pwm.Channel(pin)
	if err != nil {
		return nil, err
	}

	d := &RP2040LaserDriver{
		pwm:     pwm,
		channel: ch,
		pulse:   pulse,
	}

	d.ctx = core.NewSpindlePWM(core.SpindlePWMFlags{
		RPMControlled:  true,
		LaserOverdrive: true,
	}, uint32(periodNS), 0, 0, LaserPWMMax, nil)

	d.setDuty(0)

	return d, nil
}

// Spindle builds the driver table registered with the HAL.
func (d *RP2040LaserDriver) Spindle() *core.Spindle {
	return core.NewSpindle(core.SpindleConfig{
		Name:      "RP2040 PWM laser",
		Laser:     true,
		PulseOn:   d.pulseOn,
		UpdatePWM: d.updatePWM,
		UpdateRPM: d.updateRPM,
		PWM:       d.ctx,
	})
}

func (d *RP2040LaserDriver) pulseOn(s *core.Spindle, durationUS uint32) {
	if d.pulse != nil {
		d.pulse.Fire(durationUS)
	}
}

func (d *RP2040LaserDriver) updatePWM(s *core.Spindle, pwm uint16) {
	d.setDuty(d.ctx.Value(pwm))
}

func (d *RP2040LaserDriver) updateRPM(s *core.Spindle, rpm float32) {
	if rpm < 0 {
		rpm = 0
	}
	if rpm > LaserMaxRPM {
		rpm = LaserMaxRPM
	}
	d.setDuty(d.ctx.Value(uint16(rpm / LaserMaxRPM * LaserPWMMax)))
}

// setDuty scales a power value to the slice counter range.
func (d *RP2040LaserDriver) setDuty(value uint16) {
	d.pwm.Set(d.channel, uint32(value)*d.pwm.Top()/LaserPWMMax)
}
