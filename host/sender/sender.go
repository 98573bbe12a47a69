package sender

// G-code streaming over a serial link with line/ok flow control: one line in
// flight, the next sent only after the controller acknowledged the previous
// one. Push messages ([...] lines) are passed through without consuming the
// acknowledgement.

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"laserhal/host/serial"
)

// ControllerError is returned when the controller rejects a line.
type ControllerError struct {
	Code string // numeric code from "error:<code>"
	Line string // the rejected line
}

func (e *ControllerError) Error() string {
	return fmt.Sprintf("controller error %s for line %q", e.Code, e.Line)
}

// Sender streams commands to a controller.
type Sender struct {
	// Output receives push messages and status reports from the
	// controller. nil discards them.
	Output func(string)

	port serial.Port
	r    *bufio.Reader
}

// New creates a sender on an open port.
func New(port serial.Port) *Sender {
	return &Sender{
		port: port,
		r:    bufio.NewReader(port),
	}
}

// SendLine sends one command line and waits for its acknowledgement.
func (s *Sender) SendLine(line string) error {
	line = strings.TrimRight(line, "\r\n")

	if _, err := s.port.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	for {
		resp, err := s.readLine()
		if err != nil {
			return err
		}

		switch {
		case resp == "ok":
			return nil

		case strings.HasPrefix(resp, "error:"):
			return &ControllerError{Code: resp[len("error:"):], Line: line}

		default:
			// Push message, not an acknowledgement
			if s.Output != nil {
				s.Output(resp)
			}
		}
	}
}

// Stream sends every non-empty line from r, stopping at the first rejected
// line. Returns the number of acknowledged lines.
func (s *Sender) Stream(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	sent := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := s.SendLine(line); err != nil {
			return sent, err
		}
		sent++
	}

	return sent, scanner.Err()
}

// Reset sends the realtime reset command. No acknowledgement is expected.
func (s *Sender) Reset() error {
	_, err := s.port.Write([]byte{0x18})
	return err
}

// Status requests a realtime status report and returns the state line.
func (s *Sender) Status() (string, error) {
	if _, err := s.port.Write([]byte{'?'}); err != nil {
		return "", err
	}

	for {
		resp, err := s.readLine()
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(resp, "<") {
			return resp, nil
		}
		if s.Output != nil {
			s.Output(resp)
		}
	}
}

func (s *Sender) readLine() (string, error) {
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && strings.TrimSpace(line) != "" {
				return strings.TrimSpace(line), nil
			}
			return "", fmt.Errorf("read failed: %w", err)
		}

		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
	}
}
