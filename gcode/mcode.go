package gcode

// User M-code dispatch. Plugins take a copy of the current handler set and
// install their own; each stage falls through to the saved handlers for
// codes it does not own, forming the decorator chain the executor resolves
// at init time.

import (
	"laserhal/core"
)

// MCode is a user (non-core) M-code number.
type MCode int

// User M-codes handled by the laser plugins.
const (
	LaserPPIEnable      MCode = 126 // M126 P<0|1>
	LaserPPIRate        MCode = 127 // M127 P<pulses per inch>
	LaserPPIPulseLength MCode = 128 // M128 P<microseconds>
	LaserOverdrive      MCode = 129 // M129 P<percent>
)

// MCodeType classifies a user M-code for the executor.
type MCodeType uint8

const (
	MCodeUnsupported MCodeType = iota
	MCodeNormal
)

// UserMCodeHandlers is the pluggable user M-code handler set.
type UserMCodeHandlers struct {
	Check    func(mcode MCode) MCodeType
	Validate func(b *Block) Status
	Execute  func(checkMode bool, b *Block)
}

// Parser executes command lines against the machine. Command processing is
// foreground-only; sync-flagged blocks drain queued motion before executing
// so parameter changes never land mid-segment.
type Parser struct {
	// CheckMode suppresses execution side effects (dry run).
	CheckMode bool

	// Sync drains the motion queue. Called before executing blocks that
	// validation flagged as synchronized.
	Sync func()

	// MotionHandler receives 'G' blocks. Left nil when motion is handled
	// elsewhere.
	MotionHandler func(b *Block) Status

	hal       *core.HAL
	userMCode UserMCodeHandlers
}

// NewParser creates a parser bound to the HAL event chains.
func NewParser(h *core.HAL) *Parser {
	return &Parser{hal: h}
}

// UserMCode returns the currently installed user M-code handler set. Plugins
// save this copy and chain to it.
func (p *Parser) UserMCode() UserMCodeHandlers {
	return p.userMCode
}

// SetUserMCode installs a user M-code handler set.
func (p *Parser) SetUserMCode(h UserMCodeHandlers) {
	p.userMCode = h
}

// Init resets parser state and fires the parser-init chain. Called at
// startup and on parser re-initialization, which is a safety interlock
// point for the laser plugins.
func (p *Parser) Init() {
	p.hal.Events.ParserInit()
}

// ExecuteLine parses and executes a single command line.
func (p *Parser) ExecuteLine(line string) Status {
	b, status := ParseLine(line)
	if status != StatusOK {
		return status
	}

	switch b.Letter {
	case 0:
		return StatusOK

	case 'M':
		return p.executeM(b)

	case 'G':
		if p.MotionHandler != nil {
			return p.MotionHandler(b)
		}
		return StatusUnhandled

	default:
		return StatusUnhandled
	}
}

// executeM routes core program-flow M-codes and dispatches the rest through
// the user M-code chain.
func (p *Parser) executeM(b *Block) Status {
	switch b.Number {
	case 2, 30:
		flow := core.ProgramFlowCompletedM2
		if b.Number == 30 {
			flow = core.ProgramFlowCompletedM30
		}
		if p.Sync != nil {
			p.Sync()
		}
		p.hal.Events.ProgramCompleted(flow, p.CheckMode)
		return StatusOK
	}

	if p.userMCode.Check == nil || p.userMCode.Check(b.MCode) == MCodeUnsupported {
		return StatusUnsupportedCommand
	}

	if p.userMCode.Validate != nil {
		if status := p.userMCode.Validate(b); status != StatusOK {
			return status
		}
	}

	if b.Sync && p.Sync != nil {
		p.Sync()
	}

	if p.userMCode.Execute != nil {
		p.userMCode.Execute(p.CheckMode, b)
	}

	return StatusOK
}
