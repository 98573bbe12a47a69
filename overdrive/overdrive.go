package overdrive

// CO2 laser overdrive
// Gas-discharge tubes respond slowly to their drive signal, so the first
// PWM period after the laser enables can be boosted above the programmed
// power. This plugin exposes the boost percentage as a user M-code and
// guarantees the boost is cleared whenever a program ends or the machine
// resets.

import (
	"laserhal/core"
	"laserhal/gcode"
)

const (
	pluginName    = "CO2 laser overdrive"
	pluginVersion = "0.01"
)

// Plugin is the overdrive shaper instance.
type Plugin struct {
	hal    *core.HAL
	parser *gcode.Parser

	// laser is a weak reference to the selected driver's PWM context;
	// nil whenever the driver lacks overdrive support. Never owned.
	laser *core.SpindlePWM

	userMCode gcode.UserMCodeHandlers
}

// Init registers the overdrive plugin on the HAL and parser chains. Unlike
// the PPI scheduler its hooks are resident from init; behavior is driven
// purely by whether a compatible driver is selected.
func Init(h *core.HAL, p *gcode.Parser) *Plugin {
	pl := &Plugin{
		hal:    h,
		parser: p,
	}

	pl.userMCode = p.UserMCode()
	p.SetUserMCode(gcode.UserMCodeHandlers{
		Check:    pl.mcodeCheck,
		Validate: pl.mcodeValidate,
		Execute:  pl.mcodeExecute,
	})

	h.Events.OnSpindleSelected(pl.onSpindleSelected)
	h.Events.OnReportOptions(pl.onReportOptions)
	h.Events.OnProgramCompleted(pl.onProgramCompleted)
	h.Events.OnParserInit(pl.onParserInit)
	h.Events.OnDriverReset(pl.onDriverReset)
	h.Events.OnSettingsChanged(pl.onSettingsChanged)

	return pl
}

// Percent returns the active boost percentage, 0 when no compatible driver
// is selected.
func (pl *Plugin) Percent() float32 {
	if pl.laser == nil {
		return 0
	}
	return pl.laser.Overdrive()
}

// capable reports whether s can be targeted by the overdrive command.
func capable(s *core.Spindle) bool {
	return s != nil && s.Cap().Has(core.SpindleCapLaser) && s.PWM.SupportsOverdrive()
}

func (pl *Plugin) mcodeCheck(mcode gcode.MCode) gcode.MCodeType {
	if mcode == gcode.LaserOverdrive && pl.laser != nil && pl.laser.Flags.RPMControlled {
		return gcode.MCodeNormal
	}
	if pl.userMCode.Check != nil {
		return pl.userMCode.Check(mcode)
	}
	return gcode.MCodeUnsupported
}

func (pl *Plugin) mcodeValidate(b *gcode.Block) gcode.Status {
	status := gcode.StatusUnhandled

	if b.MCode == gcode.LaserOverdrive {
		if b.Words.Has('P') {
			if b.Value('P') >= 0.0 {
				status = gcode.StatusOK
				b.Sync = true
				b.Words.Clear('P')
			} else {
				status = gcode.StatusValueOutOfRange
			}
		} else {
			status = gcode.StatusValueWordMissing
		}
	}

	if status == gcode.StatusUnhandled && pl.userMCode.Validate != nil {
		return pl.userMCode.Validate(b)
	}

	return status
}

func (pl *Plugin) mcodeExecute(checkMode bool, b *gcode.Block) {
	if b.MCode != gcode.LaserOverdrive {
		if pl.userMCode.Execute != nil {
			pl.userMCode.Execute(checkMode, b)
		}
		return
	}

	if !checkMode && pl.laser != nil {
		pl.laser.SetLaserOverdrive(b.Value('P'))
	}
}

// onSpindleSelected re-acquires the weak PWM context reference from the
// newly selected driver; an incompatible driver silently disables the
// feature rather than raising an error.
func (pl *Plugin) onSpindleSelected(s *core.Spindle) {
	if capable(s) {
		pl.laser = s.PWM
	} else {
		pl.laser = nil
	}
}

// onSettingsChanged re-evaluates driver compatibility; a driver that no
// longer supports overdrive is downgraded to 0 % before the reference is
// dropped.
func (pl *Plugin) onSettingsChanged() {
	s := pl.hal.Spindle()
	if capable(s) {
		pl.laser = s.PWM
		return
	}
	if pl.laser != nil {
		pl.laser.SetLaserOverdrive(0.0)
		pl.laser = nil
	}
}

// onProgramCompleted clears the boost unconditionally; a laser must never
// stay in a boosted state after the program stops.
func (pl *Plugin) onProgramCompleted(flow core.ProgramFlow, checkMode bool) {
	if pl.laser != nil {
		pl.laser.SetLaserOverdrive(0.0)
	}
}

// onParserInit clears the boost on parser re-initialization, which covers
// check-mode entry and exit.
func (pl *Plugin) onParserInit() {
	if pl.laser != nil {
		pl.laser.SetLaserOverdrive(0.0)
	}
}

// onDriverReset clears the boost on machine reset.
func (pl *Plugin) onDriverReset() {
	if pl.laser != nil {
		pl.laser.SetLaserOverdrive(0.0)
	}
}

func (pl *Plugin) onReportOptions(newOpt bool) {
	if !newOpt {
		core.ReportPlugin(pluginName, pluginVersion)
	}
}
