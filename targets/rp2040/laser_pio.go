//go:build rp2040

package main

// PIO laser pulse backend using tinygo-org/pio
// Generates the timed fire pulse in hardware so pulse duration is
// cycle-exact and independent of interrupt latency.

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// PIO program for laser pulse generation
// FIFO word format: pulse duration in microseconds (32 bit)
//
// Program flow:
//  1. Pull 32-bit duration from FIFO (blocks while idle)
//  2. Move duration into X register
//  3. Raise the laser fire pin
//  4. Count X down, one cycle per microsecond at the configured divider
//  5. Drop the laser fire pin
//
// buildPulseProgram creates the pulse PIO program using AssemblerV0
func buildPulseProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),          // 0: pull block
		asm.Out(rp2pio.OutDestX, 32).Encode(),   // 1: out x, 32 (duration us)
		asm.Set(rp2pio.SetDestPins, 1).Encode(), // 2: set pins, 1
		// pulse_loop:
		asm.Jmp(3, rp2pio.JmpXNZeroDec).Encode(), // 3: jmp x--, 3
		asm.Set(rp2pio.SetDestPins, 0).Encode(),  // 4: set pins, 0
		// .wrap
	}
}

const pulsePIOOrigin = 0 // Load at offset 0 for correct jump addresses

// PIOPulseBackend fires timed laser pulses through a PIO state machine.
type PIOPulseBackend struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	pin    machine.Pin
	offset uint8
	pioNum uint8
	smNum  uint8
}

// NewPIOPulseBackend creates a new PIO-based pulse backend
// pioNum: 0 for PIO0, 1 for PIO1
// smNum: 0-3 for state machine number
func NewPIOPulseBackend(pioNum, smNum uint8) *PIOPulseBackend {
	var pioHW *rp2pio.PIO
	if pioNum == 0 {
		pioHW = rp2pio.PIO0
	} else {
		pioHW = rp2pio.PIO1
	}

	return &PIOPulseBackend{
		pio:    pioHW,
		sm:     pioHW.StateMachine(smNum),
		pioNum: pioNum,
		smNum:  smNum,
	}
}

// Init loads the pulse program and configures the fire pin.
func (b *PIOPulseBackend) Init(pin machine.Pin) error {
	b.pin = pin

	b.sm.TryClaim()

	program := buildPulseProgram()
	offset, err := b.pio.AddProgram(program, pulsePIOOrigin)
	if err != nil {
		return err
	}
	b.offset = offset

	b.pin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()

	// Fire pin is driven by SET instructions
	cfg.SetSetPins(b.pin, 1)

	// Shift right, autopull disabled (explicit PULL), 32-bit threshold
	cfg.SetOutShift(true, false, 32)

	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	// 1MHz state machine clock: one countdown iteration per microsecond
	cfg.SetClkDivIntFrac(125, 0)

	b.sm.Init(offset, cfg)

	b.sm.SetPindirsConsecutive(b.pin, 1, true)
	b.sm.SetPinsConsecutive(b.pin, 1, false)

	b.sm.SetEnabled(true)

	return nil
}

// Fire queues one pulse of durationUS microseconds. Called from the step
// interrupt context: when the FIFO is full the pulse is dropped rather than
// blocking the step path.
func (b *PIOPulseBackend) Fire(durationUS uint32) {
	if b.sm.IsTxFIFOFull() {
		return
	}
	b.sm.TxPut(durationUS)
}

// Stop aborts any pulse in progress and clears pending pulses.
func (b *PIOPulseBackend) Stop() {
	b.sm.SetEnabled(false)
	b.sm.ClearFIFOs()
	b.sm.Restart()
	b.sm.SetPinsConsecutive(b.pin, 1, false)
	b.sm.SetEnabled(true)
}
