package ppi

// Laser PPI (Pulses Per Inch) mode
// Converts continuous step-pulse motion into discrete, distance-triggered
// laser pulses. While pulsed mode is active the plugin decorates the step
// generation hooks; a pulse of the configured duration fires every
// 1/rate inch of travel. The driver's PWM/RPM update entry points are
// wrapped whenever a capable driver is selected so on/off transitions
// restart the firing epoch.

import (
	"laserhal/core"
	"laserhal/gcode"
	"laserhal/settings"
)

const (
	pluginName    = "Laser PPI"
	pluginVersion = "0.09"

	mmPerInch = 25.4

	defaultRate    = 600  // pulses per inch
	defaultPulseUS = 1500 // microseconds
)

// laserState is the modulation state shared with the step interrupt context.
// Fields are single-writer: rate/distance/pulseUS change only at motion-queue
// sync points, pos/nextPos/mmPerStep only from the step path, on only from
// the power update path.
type laserState struct {
	rate      uint16  // pulses per inch, 0 blocks activation
	distance  float32 // mm of travel between pulses
	pos       float32 // distance accumulated in the current firing epoch
	nextPos   float32 // trigger distance for the next pulse
	pulseUS   uint32  // pulse duration, 0 blocks activation
	on        bool    // laser logically on (last power update > 0)
	mmPerStep float32 // cached per segment, recomputed on the new-block flag
}

// Plugin is the PPI mode plugin instance.
type Plugin struct {
	hal       *core.HAL
	parser    *gcode.Parser
	store     *settings.Store
	laser     laserState
	requested bool // pulsed mode requested by M126

	spindle *core.Spindle // capable selected driver, nil otherwise
	wrapped *core.Spindle // driver whose update entry points we decorate

	// Saved chain handlers
	userMCode     gcode.UserMCodeHandlers
	prevWakeUp    core.WakeUpFunc
	prevPulse     core.PulseStartFunc
	prevUpdatePWM core.UpdatePWMFunc
	prevUpdateRPM core.UpdateRPMFunc

	hooksInstalled bool
}

// Init registers the PPI plugin on the HAL and parser chains. store may be
// nil when no settings layer is present; rate and pulse length then start at
// their built-in defaults.
func Init(h *core.HAL, p *gcode.Parser, store *settings.Store) *Plugin {
	pl := &Plugin{
		hal:    h,
		parser: p,
		store:  store,
	}

	pl.laser.rate = defaultRate
	pl.laser.pulseUS = defaultPulseUS

	if store != nil {
		store.Register(settings.LaserPPIRate, defaultRate)
		store.Register(settings.LaserPPIPulseLength, defaultPulseUS)
		pl.laser.rate = uint16(store.Value(settings.LaserPPIRate))
		pl.laser.pulseUS = uint32(store.Value(settings.LaserPPIPulseLength))
	}
	if pl.laser.rate != 0 {
		pl.laser.distance = mmPerInch / float32(pl.laser.rate)
	}

	pl.userMCode = p.UserMCode()
	p.SetUserMCode(gcode.UserMCodeHandlers{
		Check:    pl.mcodeCheck,
		Validate: pl.mcodeValidate,
		Execute:  pl.mcodeExecute,
	})

	h.Events.OnSpindleSelected(pl.onSpindleSelected)
	h.Events.OnReportOptions(pl.onReportOptions)
	h.Events.OnParserInit(pl.onParserInit)
	h.Events.OnProgramCompleted(pl.onProgramCompleted)
	h.Events.OnDriverReset(pl.onDriverReset)
	if store != nil {
		h.Events.OnSettingsChanged(pl.onSettingsChanged)
	}

	return pl
}

// Rate returns the configured pulses per inch.
func (pl *Plugin) Rate() uint16 {
	return pl.laser.rate
}

// PulseLength returns the configured pulse duration in microseconds.
func (pl *Plugin) PulseLength() uint32 {
	return pl.laser.pulseUS
}

// Requested reports whether pulsed mode has been requested by command.
func (pl *Plugin) Requested() bool {
	return pl.requested
}

// Active reports whether pulsed mode is live: requested with a non-zero rate
// and pulse length. Only then are the step-path hooks installed.
func (pl *Plugin) Active() bool {
	return pl.hooksInstalled
}

// active is the activation gate evaluated on every state change.
func (pl *Plugin) active() bool {
	return pl.requested && pl.laser.rate > 0 && pl.laser.pulseUS > 0
}

// stepperWakeUp starts a new firing epoch when stepping begins.
func (pl *Plugin) stepperWakeUp() {
	pl.laser.pos = 0
	pl.laser.nextPos = 0

	if pl.prevWakeUp != nil {
		pl.prevWakeUp()
	}
}

// stepperPulseStart accumulates travel on every step event and fires a pulse
// each time the accumulator crosses the trigger distance. At most one pulse
// fires per step event even when a single step travels further than one
// pulse interval; the scheduler never catches up mid-step. Runs in the step
// interrupt context: no allocation, no blocking.
func (pl *Plugin) stepperPulseStart(st *core.Stepper) {
	if pl.laser.on && pl.spindle != nil {

		if st.NewBlock {
			pl.laser.mmPerStep = 1.0 / st.Exec.StepsPerMM
		}

		if st.StepOut != 0 {
			pl.laser.pos += pl.laser.mmPerStep
			if pl.laser.pos >= pl.laser.nextPos {
				pl.laser.nextPos += pl.laser.distance
				pl.spindle.PulseOn(pl.laser.pulseUS)
			}
		}
	}

	if pl.prevPulse != nil {
		pl.prevPulse(st)
	}
}

// updatePWM observes PWM level updates. An off→on transition restarts the
// firing epoch; the requested value is always forwarded unmodified.
func (pl *Plugin) updatePWM(s *core.Spindle, pwm uint16) {
	if !pl.laser.on && pwm > 0 {
		pl.laser.pos = 0
		pl.laser.nextPos = 0
	}

	pl.laser.on = pwm > 0

	if pl.prevUpdatePWM != nil {
		pl.prevUpdatePWM(s, pwm)
	}

	// While pulsed mode is active a PWM update also fires one pulse, so
	// power changes mark the work piece at the exact transition point.
	if pl.hooksInstalled {
		s.PulseOn(pl.laser.pulseUS)
	}
}

// updateRPM observes RPM level updates, mirroring updatePWM.
func (pl *Plugin) updateRPM(s *core.Spindle, rpm float32) {
	if !pl.laser.on && rpm > 0.0 {
		pl.laser.pos = 0
		pl.laser.nextPos = 0
	}

	pl.laser.on = rpm > 0.0

	if pl.prevUpdateRPM != nil {
		pl.prevUpdateRPM(s, rpm)
	}
}

// enable installs or removes the step-path hooks. A driver that claims PPI
// generation in hardware keeps the software scheduler uninstalled. Install
// and removal swap whole handler references, so a concurrent step event sees
// either the decorated or the restored chain, never a partial state.
func (pl *Plugin) enable(on bool) {
	claimed := false
	if pl.hal.ClaimLaserPPI != nil {
		if on {
			claimed = pl.hal.ClaimLaserPPI(pl.laser.rate, pl.laser.pulseUS)
		} else {
			pl.hal.ClaimLaserPPI(0, pl.laser.pulseUS)
		}
	}

	if claimed {
		return
	}

	if on && !pl.hooksInstalled {
		pl.prevWakeUp = pl.hal.Stepper.SwapWakeUp(pl.stepperWakeUp)
		pl.prevPulse = pl.hal.Stepper.SwapPulseStart(pl.stepperPulseStart)
		pl.hooksInstalled = true
		core.CaptureTiming(core.EvtHookInstall, uint32(pl.laser.rate), pl.laser.pulseUS)
	}

	if !on && pl.hooksInstalled {
		pl.hal.Stepper.RestoreWakeUp(pl.prevWakeUp)
		pl.hal.Stepper.RestorePulseStart(pl.prevPulse)
		pl.prevWakeUp = nil
		pl.prevPulse = nil
		pl.hooksInstalled = false
		core.CaptureTiming(core.EvtHookRemove, 0, 0)
	}
}

// disable is the safety interlock path: pulsed mode back to Disabled.
func (pl *Plugin) disable() {
	pl.requested = false
	pl.enable(false)
}

func (pl *Plugin) ownsMCode(mcode gcode.MCode) bool {
	return mcode == gcode.LaserPPIEnable || mcode == gcode.LaserPPIRate || mcode == gcode.LaserPPIPulseLength
}

func (pl *Plugin) mcodeCheck(mcode gcode.MCode) gcode.MCodeType {
	if pl.ownsMCode(mcode) {
		return gcode.MCodeNormal
	}
	if pl.userMCode.Check != nil {
		return pl.userMCode.Check(mcode)
	}
	return gcode.MCodeUnsupported
}

func (pl *Plugin) mcodeValidate(b *gcode.Block) gcode.Status {
	status := gcode.StatusValueWordMissing

	switch b.MCode {

	case gcode.LaserPPIEnable:
		if !pl.hal.DriverCaps.LaserPPIMode {
			status = gcode.StatusUnsupportedCommand
		} else if b.Words.Has('P') {
			status = gcode.StatusOK
			b.Words.Clear('P')
		}

	case gcode.LaserPPIRate, gcode.LaserPPIPulseLength:
		if !pl.hal.DriverCaps.LaserPPIMode {
			status = gcode.StatusUnsupportedCommand
		} else if b.Words.Has('P') {
			if b.Value('P') < 0 {
				status = gcode.StatusValueOutOfRange
			} else {
				status = gcode.StatusOK
				b.Sync = true
				b.Words.Clear('P')
			}
		}

	default:
		status = gcode.StatusUnhandled
	}

	if status == gcode.StatusUnhandled && pl.userMCode.Validate != nil {
		return pl.userMCode.Validate(b)
	}

	return status
}

func (pl *Plugin) mcodeExecute(checkMode bool, b *gcode.Block) {
	if !pl.ownsMCode(b.MCode) {
		if pl.userMCode.Execute != nil {
			pl.userMCode.Execute(checkMode, b)
		}
		return
	}

	if checkMode {
		return
	}

	switch b.MCode {

	case gcode.LaserPPIEnable:
		pl.requested = b.Value('P') != 0

	case gcode.LaserPPIRate:
		if pl.laser.rate = uint16(b.Value('P')); pl.laser.rate != 0 {
			pl.laser.distance = mmPerInch / float32(pl.laser.rate)
		}

	case gcode.LaserPPIPulseLength:
		pl.laser.pulseUS = uint32(b.Value('P'))
	}

	pl.enable(pl.active())
}

// onSpindleSelected re-evaluates driver capability and moves the power
// update decorators to the newly selected driver.
func (pl *Plugin) onSpindleSelected(s *core.Spindle) {
	capable := s != nil && s.Cap().Has(core.SpindleCapLaser|core.SpindleCapPulseOn)
	pl.hal.DriverCaps.LaserPPIMode = capable

	if pl.wrapped != nil && pl.wrapped != s {
		pl.wrapped.RestoreUpdatePWM(pl.prevUpdatePWM)
		pl.wrapped.RestoreUpdateRPM(pl.prevUpdateRPM)
		pl.wrapped = nil
		pl.prevUpdatePWM = nil
		pl.prevUpdateRPM = nil
	}

	if !capable {
		pl.spindle = nil
		return
	}

	pl.spindle = s

	if pl.wrapped != s {
		if prev, ok := s.SwapUpdatePWM(pl.updatePWM); ok {
			pl.prevUpdatePWM = prev
		}
		if prev, ok := s.SwapUpdateRPM(pl.updateRPM); ok {
			pl.prevUpdateRPM = prev
		}
		pl.wrapped = s
	}

	core.CaptureTiming(core.EvtDriverSelect, uint32(s.Cap()), 0)
}

// onParserInit is a safety interlock point: parser re-initialization forces
// pulsed mode back to Disabled.
func (pl *Plugin) onParserInit() {
	pl.disable()
}

// onProgramCompleted forces pulsed mode off when a program ends, except in
// check mode where no state was touched.
func (pl *Plugin) onProgramCompleted(flow core.ProgramFlow, checkMode bool) {
	if !checkMode {
		pl.disable()
	}
}

// onDriverReset forces pulsed mode off on machine reset.
func (pl *Plugin) onDriverReset() {
	pl.disable()
}

// onSettingsChanged re-reads the configured defaults. Only applied while
// pulsed mode is fully disabled so a parameter never changes under an
// in-flight segment.
func (pl *Plugin) onSettingsChanged() {
	if pl.requested || pl.hooksInstalled {
		return
	}

	if pl.laser.rate = uint16(pl.store.Value(settings.LaserPPIRate)); pl.laser.rate != 0 {
		pl.laser.distance = mmPerInch / float32(pl.laser.rate)
	}
	pl.laser.pulseUS = uint32(pl.store.Value(settings.LaserPPIPulseLength))
}

func (pl *Plugin) onReportOptions(newOpt bool) {
	if !newOpt {
		core.ReportPlugin(pluginName, pluginVersion)
	}
}
