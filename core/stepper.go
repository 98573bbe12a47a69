package core

// Step event generation
// Timer-driven step loop feeding the HAL step-path hooks. Plugins that wrap
// the hooks see every step event with its axis bits and new-block flag; the
// engine's own base handlers sit at the tail of the chain and drive the
// hardware backend.

import (
	"errors"
)

const (
	// Queue size for pending segments
	SegmentQueueSize = 16
)

// AxisBits marks which axes step on an event.
type AxisBits uint8

const (
	StepX AxisBits = 1 << iota
	StepY
	StepZ
)

// Segment is a single queued motion segment with constant step rate and
// resolution.
type Segment struct {
	Steps      uint32   // Number of step events in this segment
	Interval   uint32   // Timer ticks between step events
	StepsPerMM float32  // Step resolution along the dominant axis
	StepBits   AxisBits // Axes that step on each event (0 = dwell)
}

// Stepper is the per-step state handed to the pulse-start hook. A single
// instance is reused for every event; hook handlers must not retain it.
type Stepper struct {
	NewBlock bool     // First event of a newly loaded segment
	StepOut  AxisBits // Axes that stepped on this event
	Exec     *Segment // Segment being executed
}

// StepBackend drives the physical step outputs.
type StepBackend interface {
	Step(bits AxisBits)
}

// StepEngine executes queued segments on the timer timeline.
type StepEngine struct {
	StepTimer Timer

	hal     *HAL
	backend StepBackend

	queue     [SegmentQueueSize]Segment
	queueHead uint8
	queueTail uint8

	st        Stepper
	remaining uint32
	running   bool
}

// NewStepEngine creates a step engine and installs its base handlers at the
// tail of the HAL step-path hook chains.
func NewStepEngine(h *HAL, backend StepBackend) *StepEngine {
	e := &StepEngine{
		hal:     h,
		backend: backend,
	}
	e.StepTimer.Handler = e.stepEvent

	h.Stepper.SwapWakeUp(e.baseWakeUp)
	h.Stepper.SwapPulseStart(e.basePulseStart)

	return e
}

// QueueSegment adds a segment to the queue and starts the engine if idle.
func (e *StepEngine) QueueSegment(seg Segment) error {
	nextTail := (e.queueTail + 1) % SegmentQueueSize
	if nextTail == e.queueHead {
		return errors.New("segment queue overflow")
	}

	e.queue[e.queueTail] = seg
	e.queueTail = nextTail

	if !e.running {
		e.running = true
		e.hal.Stepper.WakeUp()
	}

	return nil
}

// Idle reports whether all queued motion has drained.
func (e *StepEngine) Idle() bool {
	return !e.running
}

// RunToIdle advances the timeline until the queue has drained. This is the
// motion-queue synchronization point for the host/simulation build; hardware
// targets drain from the timer interrupt instead.
func (e *StepEngine) RunToIdle() {
	for e.running {
		SetTime(e.StepTimer.WakeTime)
		ProcessTimers()
	}
}

// Stop aborts motion and clears the queue. Used by machine reset.
func (e *StepEngine) Stop() {
	CancelTimer(&e.StepTimer)
	e.queueHead = 0
	e.queueTail = 0
	e.remaining = 0
	e.running = false
}

// baseWakeUp is the chain tail for the wake-up hook: load the first segment
// and schedule the step timer.
func (e *StepEngine) baseWakeUp() {
	if !e.loadNextSegment() {
		e.running = false
		return
	}
	e.StepTimer.WakeTime = GetTime() + e.st.Exec.Interval
	ScheduleTimer(&e.StepTimer)
}

// basePulseStart is the chain tail for the pulse-start hook: drive the
// hardware step outputs.
func (e *StepEngine) basePulseStart(st *Stepper) {
	if e.backend != nil && st.StepOut != 0 {
		e.backend.Step(st.StepOut)
	}
}

// loadNextSegment pulls the next segment from the queue.
func (e *StepEngine) loadNextSegment() bool {
	if e.queueHead == e.queueTail {
		return false
	}

	e.st.Exec = &e.queue[e.queueHead]
	e.st.NewBlock = true
	e.remaining = e.st.Exec.Steps
	e.queueHead = (e.queueHead + 1) % SegmentQueueSize

	return e.remaining > 0
}

// stepEvent is the step timer handler. One invocation per step event; runs in
// the interrupt context and must not allocate.
func (e *StepEngine) stepEvent(t *Timer) uint8 {
	e.st.StepOut = e.st.Exec.StepBits
	e.hal.Stepper.PulseStart(&e.st)
	e.st.NewBlock = false

	e.remaining--
	if e.remaining == 0 {
		if !e.loadNextSegment() {
			e.running = false
			return TimerDone
		}
	}

	t.WakeTime += e.st.Exec.Interval
	return TimerReschedule
}
