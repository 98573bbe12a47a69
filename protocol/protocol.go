package protocol

// Line protocol for the command console. Plain-text command lines answered
// with "ok" or "error:<code>"; a few single-byte realtime commands are
// dispatched immediately, bypassing the line buffer.

import (
	"laserhal/core"
	"laserhal/gcode"
)

const (
	// LineMax is the longest accepted command line, terminator excluded.
	LineMax = 80
)

// Realtime command bytes
const (
	CmdReset        byte = 0x18 // Ctrl-X, machine reset
	CmdStatusReport byte = '?'
	CmdCycleStart   byte = '~'
	CmdFeedHold     byte = '!'
)

// Controller wires the serial input stream to the parser and formats the
// responses.
type Controller struct {
	// OnReset runs on the realtime reset command, after motion has been
	// stopped and before the driver-reset chain fires.
	OnReset func()

	// Status returns the machine state word for status report requests.
	Status func() string

	hal    *core.HAL
	parser *gcode.Parser
	write  func(string)

	rx       RingBuffer
	line     [LineMax]byte
	lineLen  int
	overflow bool
}

// NewController creates a controller writing responses through write.
func NewController(h *core.HAL, p *gcode.Parser, write func(string)) *Controller {
	return &Controller{
		hal:    h,
		parser: p,
		write:  write,
	}
}

// Input buffers received bytes. Called from the serial receive path;
// realtime commands are not buffered and take effect on the next Poll.
func (c *Controller) Input(data []byte) {
	for _, b := range data {
		if !c.rx.Put(b) {
			break
		}
	}
}

// Poll drains buffered input, dispatching realtime commands immediately and
// executing completed lines. Runs in the foreground context.
func (c *Controller) Poll() {
	for {
		b, ok := c.rx.Get()
		if !ok {
			return
		}

		switch b {

		case CmdReset:
			c.reset()

		case CmdStatusReport:
			c.statusReport()

		case CmdCycleStart, CmdFeedHold:
			// Motion stream control is owned by the motion engine;
			// accepted here so senders see no error.

		case '\n', '\r':
			c.endLine()

		default:
			if c.lineLen >= LineMax {
				c.overflow = true
				continue
			}
			c.line[c.lineLen] = b
			c.lineLen++
		}
	}
}

// endLine executes the assembled line and emits the response.
func (c *Controller) endLine() {
	if c.lineLen == 0 && !c.overflow {
		return
	}

	if c.overflow {
		c.overflow = false
		c.lineLen = 0
		c.write("error:" + core.Itoa(int(gcode.StatusBadNumberFormat)))
		return
	}

	line := string(c.line[:c.lineLen])
	c.lineLen = 0

	status := c.parser.ExecuteLine(line)
	if status == gcode.StatusOK {
		c.write("ok")
	} else {
		c.write("error:" + core.Itoa(int(status)))
	}
}

// reset performs the realtime machine reset: discard pending input, run the
// reset callback, then the driver-reset chain and parser re-initialization
// so the safety interlocks fire.
func (c *Controller) reset() {
	c.rx.Reset()
	c.lineLen = 0
	c.overflow = false

	if c.OnReset != nil {
		c.OnReset()
	}

	c.hal.DriverReset()
	c.parser.Init()

	c.write("[MSG:Reset]")
}

func (c *Controller) statusReport() {
	state := "Idle"
	if c.Status != nil {
		state = c.Status()
	}
	c.write("<" + state + ">")
}
