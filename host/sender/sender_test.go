package sender

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// scriptPort replays canned controller output and records everything written.
type scriptPort struct {
	rx   bytes.Buffer // controller → host
	sent bytes.Buffer // host → controller
}

func (p *scriptPort) Read(b []byte) (int, error)  { return p.rx.Read(b) }
func (p *scriptPort) Write(b []byte) (int, error) { return p.sent.Write(b) }
func (p *scriptPort) Close() error                { return nil }
func (p *scriptPort) Flush() error                { return nil }

func TestSendLineAcknowledged(t *testing.T) {
	p := &scriptPort{}
	p.rx.WriteString("ok\n")

	s := New(p)
	if err := s.SendLine("M126 P1"); err != nil {
		t.Fatalf("SendLine: %v", err)
	}
	if got := p.sent.String(); got != "M126 P1\n" {
		t.Errorf("wrote %q", got)
	}
}

func TestSendLineRejected(t *testing.T) {
	p := &scriptPort{}
	p.rx.WriteString("error:4\n")

	s := New(p)
	err := s.SendLine("M126")
	if err == nil {
		t.Fatal("rejected line reported no error")
	}

	var ce *ControllerError
	if !errors.As(err, &ce) {
		t.Fatalf("error type %T", err)
	}
	if ce.Code != "4" || ce.Line != "M126" {
		t.Errorf("controller error = %+v", ce)
	}
}

func TestPushMessagesPassedThrough(t *testing.T) {
	p := &scriptPort{}
	p.rx.WriteString("[PLUGIN:Laser PPI v0.09]\nok\n")

	var pushed []string
	s := New(p)
	s.Output = func(line string) { pushed = append(pushed, line) }

	if err := s.SendLine("M126 P1"); err != nil {
		t.Fatalf("SendLine: %v", err)
	}
	if len(pushed) != 1 || pushed[0] != "[PLUGIN:Laser PPI v0.09]" {
		t.Errorf("pushed = %v", pushed)
	}
}

func TestStreamStopsAtRejectedLine(t *testing.T) {
	p := &scriptPort{}
	p.rx.WriteString("ok\nok\nerror:5\n")

	s := New(p)
	program := "M127 P600\n\nM128 P1500\nM126\nM126 P1\n"
	sent, err := s.Stream(strings.NewReader(program))

	if err == nil {
		t.Fatal("stream ignored rejected line")
	}
	if sent != 2 {
		t.Errorf("acknowledged %d lines, want 2", sent)
	}
	// The line after the rejection must not have been sent
	if strings.Contains(p.sent.String(), "M126 P1") {
		t.Error("streaming continued past rejected line")
	}
}

func TestStatus(t *testing.T) {
	p := &scriptPort{}
	p.rx.WriteString("[MSG:note]\n<Idle>\n")

	s := New(p)
	state, err := s.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if state != "<Idle>" {
		t.Errorf("state = %q", state)
	}
	if got := p.sent.String(); got != "?" {
		t.Errorf("wrote %q, want ?", got)
	}
}

func TestReset(t *testing.T) {
	p := &scriptPort{}
	s := New(p)

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := p.sent.Bytes(); len(got) != 1 || got[0] != 0x18 {
		t.Errorf("wrote % x, want 18", got)
	}
}
