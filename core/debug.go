package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a timing-critical event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtSegmentLoad  = 1 // Segment loaded from queue
	EvtStepEvent    = 2 // Step event dispatched
	EvtLaserPulse   = 3 // Laser pulse fired
	EvtPowerUpdate  = 4 // PWM/RPM update observed
	EvtHookInstall  = 5 // Step-path hook installed
	EvtHookRemove   = 6 // Step-path hook removed
	EvtTimerPast    = 7 // Timer in past detected
	EvtDriverSelect = 8 // Spindle selection changed
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Timing capture ring buffer (non-blocking, for post-mortem)
	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
	timingEnabled  bool = true
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message if debug output is enabled
func DebugPrintln(s string) {
	if debugEnabled {
		debugPrintln(s)
	}
}

// CaptureTiming records a timing event in the post-mortem ring. Safe to call
// from the step interrupt context; never blocks or allocates.
func CaptureTiming(eventType uint8, value1, value2 uint32) {
	if !timingEnabled {
		return
	}

	timingRing[timingRingHead] = TimingEvent{
		EventType: eventType,
		Clock:     GetTime(),
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (timingRingHead + 1) % TimingRingSize
}

// TimingEvents returns the captured events, oldest first.
func TimingEvents() []TimingEvent {
	out := make([]TimingEvent, 0, TimingRingSize)
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(timingRingHead+i)%TimingRingSize]
		if evt.EventType != 0 {
			out = append(out, evt)
		}
	}
	return out
}

// ResetTiming clears the timing ring.
func ResetTiming() {
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
}
