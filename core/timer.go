package core

// Timer frequency for the step generation timeline
const (
	TimerFreq = 12000000 // 12MHz default timer frequency
)

var (
	systemTicks uint32
	bootTime    uint64 // Time at boot for uptime calculation
)

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// GetUptime returns 64-bit uptime in timer ticks
func GetUptime() uint64 {
	return uint64(GetTime()) - bootTime
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return (us * (TimerFreq / 1000000))
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return ticks / (TimerFreq / 1000000)
}

// TimerInit initializes the system timer
func TimerInit() {
	bootTime = uint64(GetTime())
}

// ProcessTimers processes scheduled timers against the current tick count
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}
