//go:build rp2040

package main

// RP2040 laser controller firmware entry point
// Wires the PWM laser driver and PIO pulse backend into the modulation core
// and runs the serial command loop.

import (
	"machine"
	"time"

	"laserhal/core"
	"laserhal/gcode"
	"laserhal/overdrive"
	"laserhal/ppi"
	"laserhal/protocol"
	"laserhal/settings"
)

// Pin assignment
const (
	laserPWMPin  = machine.GPIO16 // Power (PWM) output
	laserFirePin = machine.GPIO17 // Pulse (fire) output, driven by PIO
	stepPinX     = machine.GPIO2
	stepPinY     = machine.GPIO4
)

// Machine constants
const (
	stepsPerMM   = 80.0    // Step resolution of both axes
	laserPeriod  = 200_000 // PWM period in nanoseconds (5 kHz)
	maxFeedMMMin = 6000.0
)

// StepperGPIO drives the step outputs by direct GPIO toggling.
type StepperGPIO struct {
	pins [2]machine.Pin
}

// Init configures the step pins as outputs.
func (s *StepperGPIO) Init() {
	s.pins[0] = stepPinX
	s.pins[1] = stepPinY
	for _, pin := range s.pins {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.Low()
	}
}

// Step generates the step pulses for the flagged axes.
func (s *StepperGPIO) Step(bits core.AxisBits) {
	for i, pin := range s.pins {
		if bits&(core.AxisBits(1)<<i) != 0 {
			pin.High()
		}
	}
	// Drivers latch on the rising edge; a few hundred nanoseconds of width
	// is enough.
	for i := 0; i < 20; i++ {
		_ = s.pins[0].Get()
	}
	for _, pin := range s.pins {
		pin.Low()
	}
}

var bootTime time.Time

// pollTime publishes the hardware clock to the timer timeline.
func pollTime() {
	ns := time.Since(bootTime).Nanoseconds()
	core.SetTime(uint32(ns * (core.TimerFreq / 1000000) / 1000))
}

func main() {
	bootTime = time.Now()
	core.TimerInit()

	hal := core.NewHAL()
	parser := gcode.NewParser(hal)
	store := settings.NewStore(hal)

	// Step outputs
	backend := &StepperGPIO{}
	backend.Init()
	engine := core.NewStepEngine(hal, backend)

	parser.Sync = func() {
		for !engine.Idle() {
			pollTime()
			core.ProcessTimers()
		}
	}
	parser.MotionHandler = makeMotionHandler(engine)

	// Laser driver: PWM power plus PIO fire pulse
	pulse := NewPIOPulseBackend(0, 0)
	if err := pulse.Init(laserFirePin); err != nil {
		core.DebugPrintln("[INIT] PIO pulse backend failed: " + err.Error())
		return
	}

	driver, err := NewRP2040LaserDriver(machine.PWM0, laserPWMPin, laserPeriod, pulse)
	if err != nil {
		core.DebugPrintln("[INIT] PWM laser driver failed: " + err.Error())
		return
	}

	// Modulation plugins
	ppi.Init(hal, parser, store)
	overdrive.Init(hal, parser)

	hal.SelectSpindle(driver.Spindle())
	parser.Init()

	// Command console on USB CDC
	console := protocol.NewController(hal, parser, func(s string) {
		machine.Serial.Write([]byte(s + "\r\n"))
	})
	console.OnReset = func() {
		engine.Stop()
		pulse.Stop()
	}
	console.Status = func() string {
		if engine.Idle() {
			return "Idle"
		}
		return "Run"
	}
	core.SetReportWriter(func(s string) {
		machine.Serial.Write([]byte(s + "\r\n"))
	})

	var rx [64]byte
	for {
		n := 0
		for machine.Serial.Buffered() > 0 && n < len(rx) {
			b, err := machine.Serial.ReadByte()
			if err != nil {
				break
			}
			rx[n] = b
			n++
		}
		if n > 0 {
			console.Input(rx[:n])
		}

		console.Poll()
		pollTime()
		core.ProcessTimers()
	}
}

// makeMotionHandler translates G0/G1 blocks into step segments. The
// controller is a laser engraver: two cartesian axes, dominant-axis step
// generation.
func makeMotionHandler(engine *core.StepEngine) func(b *gcode.Block) gcode.Status {
	var posX, posY float32
	feed := float32(maxFeedMMMin)

	return func(b *gcode.Block) gcode.Status {
		switch b.Number {
		case 0, 1:

			targetX, targetY := posX, posY
			if b.Words.Has('X') {
				targetX = b.Value('X')
				b.Words.Clear('X')
			}
			if b.Words.Has('Y') {
				targetY = b.Value('Y')
				b.Words.Clear('Y')
			}
			if b.Words.Has('F') {
				if f := b.Value('F'); f > 0 && f <= maxFeedMMMin {
					feed = f
				}
				b.Words.Clear('F')
			}

			dx := targetX - posX
			dy := targetY - posY
			if dx < 0 {
				dx = -dx
			}
			if dy < 0 {
				dy = -dy
			}

			major := dx
			bits := core.StepX
			if dy > dx {
				major = dy
				bits = core.StepY
			}
			if dx > 0 && dy > 0 {
				bits = core.StepX | core.StepY
			}

			steps := uint32(major * stepsPerMM)
			if steps == 0 {
				return gcode.StatusOK
			}

			// Rapids run at the feed ceiling
			f := feed
			if b.Number == 0 {
				f = maxFeedMMMin
			}
			mmPerTick := f / 60.0 / core.TimerFreq
			interval := uint32(1.0 / (mmPerTick * stepsPerMM))

			if err := engine.QueueSegment(core.Segment{
				Steps:      steps,
				Interval:   interval,
				StepsPerMM: stepsPerMM,
				StepBits:   bits,
			}); err != nil {
				return gcode.StatusBadNumberFormat
			}

			posX, posY = targetX, targetY
			return gcode.StatusOK

		case 90, 91, 92, 20, 21:
			// Modal codes accepted, this controller is absolute mm only
			return gcode.StatusOK
		}

		return gcode.StatusUnhandled
	}
}
