package ppi

import (
	"testing"

	"laserhal/core"
	"laserhal/gcode"
	"laserhal/settings"
)

// fakeLaser records every driver call so tests can assert on the pulse
// stream and forwarded power values.
type fakeLaser struct {
	pulses []uint32
	pwm    []uint16
	rpm    []float32
}

func newFakeSpindle(laser *fakeLaser, pulseCapable bool) *core.Spindle {
	cfg := core.SpindleConfig{
		Name:  "test laser",
		Laser: true,
		UpdatePWM: func(s *core.Spindle, pwm uint16) {
			laser.pwm = append(laser.pwm, pwm)
		},
		UpdateRPM: func(s *core.Spindle, rpm float32) {
			laser.rpm = append(laser.rpm, rpm)
		},
	}
	if pulseCapable {
		cfg.PulseOn = func(s *core.Spindle, durationUS uint32) {
			laser.pulses = append(laser.pulses, durationUS)
		}
	}
	return core.NewSpindle(cfg)
}

type harness struct {
	hal     *core.HAL
	parser  *gcode.Parser
	engine  *core.StepEngine
	plugin  *Plugin
	laser   *fakeLaser
	spindle *core.Spindle
}

func newHarness(t *testing.T, pulseCapable bool) *harness {
	t.Helper()
	core.ResetTimers()
	core.SetTime(0)

	h := &harness{
		hal:   core.NewHAL(),
		laser: &fakeLaser{},
	}
	h.parser = gcode.NewParser(h.hal)
	h.engine = core.NewStepEngine(h.hal, nil)
	h.parser.Sync = h.engine.RunToIdle
	h.plugin = Init(h.hal, h.parser, nil)

	h.spindle = newFakeSpindle(h.laser, pulseCapable)
	h.hal.SelectSpindle(h.spindle)
	h.parser.Init()

	return h
}

// move queues a straight segment and runs it to completion.
func (h *harness) move(t *testing.T, steps uint32, stepsPerMM float32) {
	t.Helper()
	err := h.engine.QueueSegment(core.Segment{
		Steps:      steps,
		Interval:   100,
		StepsPerMM: stepsPerMM,
		StepBits:   core.StepX,
	})
	if err != nil {
		t.Fatalf("QueueSegment failed: %v", err)
	}
	h.engine.RunToIdle()
}

func (h *harness) execute(t *testing.T, line string) gcode.Status {
	t.Helper()
	return h.parser.ExecuteLine(line)
}

func TestEnableInstallsHooks(t *testing.T) {
	h := newHarness(t, true)

	if h.plugin.Active() {
		t.Fatal("pulsed mode active before enable")
	}

	if status := h.execute(t, "M126 P1"); status != gcode.StatusOK {
		t.Fatalf("M126 P1 rejected: %v", status)
	}
	if !h.plugin.Active() {
		t.Fatal("pulsed mode not active after enable")
	}

	if status := h.execute(t, "M126 P0"); status != gcode.StatusOK {
		t.Fatalf("M126 P0 rejected: %v", status)
	}
	if h.plugin.Active() {
		t.Fatal("pulsed mode still active after disable")
	}
}

func TestEnableWithoutCapability(t *testing.T) {
	h := newHarness(t, false)

	for _, line := range []string{"M126 P1", "M127 P300", "M128 P800"} {
		if status := h.execute(t, line); status != gcode.StatusUnsupportedCommand {
			t.Errorf("%s: expected unsupported command, got %v", line, status)
		}
	}
	if h.plugin.Active() {
		t.Fatal("pulsed mode active on incapable driver")
	}
}

func TestMissingValueWord(t *testing.T) {
	h := newHarness(t, true)

	for _, line := range []string{"M126", "M127", "M128"} {
		if status := h.execute(t, line); status != gcode.StatusValueWordMissing {
			t.Errorf("%s: expected value word missing, got %v", line, status)
		}
	}
}

func TestRejectedCommandLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, true)

	if status := h.execute(t, "M127 P300"); status != gcode.StatusOK {
		t.Fatalf("M127 rejected: %v", status)
	}
	if status := h.execute(t, "M127 P-5"); status != gcode.StatusValueOutOfRange {
		t.Fatalf("negative rate: expected out of range, got %v", status)
	}
	if h.plugin.Rate() != 300 {
		t.Errorf("rate changed by rejected command: %d", h.plugin.Rate())
	}
}

func TestZeroRateBlocksActivation(t *testing.T) {
	h := newHarness(t, true)

	if status := h.execute(t, "M127 P0"); status != gcode.StatusOK {
		t.Fatalf("M127 P0 rejected: %v", status)
	}
	if status := h.execute(t, "M126 P1"); status != gcode.StatusOK {
		t.Fatalf("M126 P1 rejected: %v", status)
	}

	if !h.plugin.Requested() {
		t.Fatal("pulsed mode not requested")
	}
	if h.plugin.Active() {
		t.Fatal("pulsed mode active with rate 0")
	}

	// Restoring the rate activates the already-requested mode
	if status := h.execute(t, "M127 P600"); status != gcode.StatusOK {
		t.Fatalf("M127 P600 rejected: %v", status)
	}
	if !h.plugin.Active() {
		t.Fatal("pulsed mode not active after rate restored")
	}
}

func TestZeroPulseLengthBlocksActivation(t *testing.T) {
	h := newHarness(t, true)

	h.execute(t, "M126 P1")
	if !h.plugin.Active() {
		t.Fatal("pulsed mode not active")
	}

	h.execute(t, "M128 P0")
	if h.plugin.Active() {
		t.Fatal("pulsed mode active with pulse length 0")
	}
}

func TestPulseStreamOverSegment(t *testing.T) {
	h := newHarness(t, true)

	// Power on before enabling so the power-update echo pulse is not part
	// of the expected stream
	h.spindle.UpdatePWM(500)
	h.execute(t, "M126 P1")

	// 36 steps at 80 steps/mm = 0.45mm of travel. With the default
	// 600 PPI the pulse interval is 25.4/600 mm, so the trigger fires at
	// 0.45/(25.4/600) = 10.63 intervals: 10 crossings plus the pulse at
	// distance zero.
	h.move(t, 36, 80)

	if len(h.laser.pulses) != 11 {
		t.Fatalf("expected 11 pulses, got %d", len(h.laser.pulses))
	}
	for i, d := range h.laser.pulses {
		if d != 1500 {
			t.Fatalf("pulse %d has duration %d, want 1500", i, d)
		}
	}
}

func TestPulseStreamDeterministic(t *testing.T) {
	counts := make([]int, 2)

	for run := range counts {
		h := newHarness(t, true)
		h.spindle.UpdatePWM(500)
		h.execute(t, "M126 P1")

		// The canonical one-inch move: 2032 steps at 80 steps/mm with
		// rate 600 converges on one pulse per 1/600 inch
		h.move(t, 2032, 80)
		counts[run] = len(h.laser.pulses)
	}

	if counts[0] != counts[1] {
		t.Fatalf("pulse count not deterministic: %d vs %d", counts[0], counts[1])
	}
	if counts[0] < 600 || counts[0] > 601 {
		t.Fatalf("expected 600±1 pulses over one inch, got %d", counts[0])
	}
}

func TestOnePulsePerStepEvent(t *testing.T) {
	h := newHarness(t, true)

	h.spindle.UpdatePWM(500)
	h.execute(t, "M126 P1")

	// 0.1mm per step is more than twice the 600 PPI interval; the
	// scheduler must not catch up mid-step, so exactly one pulse fires
	// per step event.
	h.move(t, 10, 10)

	if len(h.laser.pulses) != 10 {
		t.Fatalf("expected 10 pulses (one per step), got %d", len(h.laser.pulses))
	}
}

func TestNoPulsesWhileLaserOff(t *testing.T) {
	h := newHarness(t, true)

	h.execute(t, "M126 P1")
	h.move(t, 100, 80)

	if len(h.laser.pulses) != 0 {
		t.Fatalf("pulses fired while laser off: %d", len(h.laser.pulses))
	}
}

func TestOnTransitionResetsEpoch(t *testing.T) {
	h := newHarness(t, true)

	h.spindle.UpdatePWM(500)
	h.execute(t, "M126 P1")

	// A short move fires only the distance-zero pulse
	h.move(t, 2, 80)
	if len(h.laser.pulses) != 1 {
		t.Fatalf("expected 1 pulse, got %d", len(h.laser.pulses))
	}

	// Power off and on restarts the firing epoch, so the next step
	// triggers at distance zero again. The on-transition also fires the
	// power-update echo pulse while pulsed mode is active.
	h.spindle.UpdatePWM(0)
	h.spindle.UpdatePWM(500)
	echo := len(h.laser.pulses)

	h.move(t, 1, 80)
	if len(h.laser.pulses) != echo+1 {
		t.Fatalf("epoch not reset: expected pulse on first step after on-transition")
	}
}

func TestWakeUpResetsDistances(t *testing.T) {
	h := newHarness(t, true)

	h.spindle.UpdatePWM(500)
	h.execute(t, "M126 P1")

	// Each new motion cycle starts a fresh epoch: the first step of each
	// cycle crosses the zero trigger
	for cycle := 0; cycle < 3; cycle++ {
		before := len(h.laser.pulses)
		h.move(t, 1, 80)
		if len(h.laser.pulses) != before+1 {
			t.Fatalf("cycle %d: expected distance-zero pulse", cycle)
		}
	}
}

func TestPowerValuesForwardedUnmodified(t *testing.T) {
	h := newHarness(t, true)

	h.spindle.UpdatePWM(123)
	h.spindle.UpdatePWM(0)
	h.spindle.UpdateRPM(456.5)

	if len(h.laser.pwm) != 2 || h.laser.pwm[0] != 123 || h.laser.pwm[1] != 0 {
		t.Fatalf("PWM values not forwarded unmodified: %v", h.laser.pwm)
	}
	if len(h.laser.rpm) != 1 || h.laser.rpm[0] != 456.5 {
		t.Fatalf("RPM values not forwarded unmodified: %v", h.laser.rpm)
	}
}

func TestProgramCompletedDisables(t *testing.T) {
	h := newHarness(t, true)

	h.execute(t, "M126 P1")
	if !h.plugin.Active() {
		t.Fatal("pulsed mode not active")
	}

	if status := h.execute(t, "M2"); status != gcode.StatusOK {
		t.Fatalf("M2 rejected: %v", status)
	}

	if h.plugin.Active() || h.plugin.Requested() {
		t.Fatal("program completion did not force pulsed mode off")
	}
}

func TestCheckModeProgramCompletedKeepsState(t *testing.T) {
	h := newHarness(t, true)

	h.execute(t, "M126 P1")
	h.parser.CheckMode = true
	h.execute(t, "M2")
	h.parser.CheckMode = false

	if !h.plugin.Active() {
		t.Fatal("check-mode program completion must not disable pulsed mode")
	}
}

func TestParserInitDisables(t *testing.T) {
	h := newHarness(t, true)

	h.execute(t, "M126 P1")
	h.parser.Init()

	if h.plugin.Active() || h.plugin.Requested() {
		t.Fatal("parser re-init did not force pulsed mode off")
	}
}

func TestDriverResetDisables(t *testing.T) {
	h := newHarness(t, true)

	h.execute(t, "M126 P1")
	h.hal.DriverReset()

	if h.plugin.Active() || h.plugin.Requested() {
		t.Fatal("driver reset did not force pulsed mode off")
	}
}

func TestReEnableResetsDistances(t *testing.T) {
	h := newHarness(t, true)

	h.spindle.UpdatePWM(500)
	h.execute(t, "M126 P1")
	h.move(t, 36, 80)

	h.execute(t, "M126 P0")
	h.execute(t, "M126 P1")

	before := len(h.laser.pulses)
	h.move(t, 1, 80)
	if len(h.laser.pulses) != before+1 {
		t.Fatal("re-enable did not reset the distance accumulator")
	}
}

func TestHookRemovalRestoresPriorHandler(t *testing.T) {
	h := newHarness(t, true)

	// The engine base handlers must survive an install/remove cycle:
	// motion still runs and no pulses fire afterwards
	for i := 0; i < 3; i++ {
		h.execute(t, "M126 P1")
		h.execute(t, "M126 P0")
	}

	h.spindle.UpdatePWM(500)
	h.move(t, 100, 80)

	if len(h.laser.pulses) != 0 {
		t.Fatalf("pulses fired while disabled: %d", len(h.laser.pulses))
	}
	if !h.engine.Idle() {
		t.Fatal("engine did not drain after hook cycling")
	}
}

func TestHardwareClaimSkipsSoftwareScheduler(t *testing.T) {
	h := newHarness(t, true)

	var claimedRate uint16
	h.hal.ClaimLaserPPI = func(rate uint16, pulseUS uint32) bool {
		claimedRate = rate
		return true
	}

	h.execute(t, "M126 P1")

	if claimedRate != 600 {
		t.Fatalf("driver claim not offered: rate %d", claimedRate)
	}
	if h.plugin.Active() {
		t.Fatal("software hooks installed despite hardware claim")
	}
}

func TestSettingsProvideDefaults(t *testing.T) {
	core.ResetTimers()
	core.SetTime(0)

	hal := core.NewHAL()
	parser := gcode.NewParser(hal)
	core.NewStepEngine(hal, nil)
	store := settings.NewStore(hal)

	plugin := Init(hal, parser, store)

	if plugin.Rate() != 600 || plugin.PulseLength() != 1500 {
		t.Fatalf("unexpected defaults: rate %d pulse %d", plugin.Rate(), plugin.PulseLength())
	}

	// Changed defaults are picked up while fully disabled
	if err := store.Set(settings.LaserPPIRate, 254); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if plugin.Rate() != 254 {
		t.Fatalf("settings change not applied: rate %d", plugin.Rate())
	}
}

func TestSettingsIgnoredWhileRequested(t *testing.T) {
	core.ResetTimers()
	core.SetTime(0)

	hal := core.NewHAL()
	parser := gcode.NewParser(hal)
	core.NewStepEngine(hal, nil)
	store := settings.NewStore(hal)

	laser := &fakeLaser{}
	plugin := Init(hal, parser, store)
	hal.SelectSpindle(newFakeSpindle(laser, true))

	parser.ExecuteLine("M126 P1")
	store.Set(settings.LaserPPIRate, 100)

	if plugin.Rate() != 600 {
		t.Fatalf("settings change applied mid-mode: rate %d", plugin.Rate())
	}
}
