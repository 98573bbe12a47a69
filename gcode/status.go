package gcode

// Status is the synchronous result of command validation/execution. A
// non-OK status leaves all modulation state untouched.
type Status uint8

const (
	StatusOK Status = iota
	StatusUnhandled
	StatusExpectedCommandLetter
	StatusBadNumberFormat
	StatusUnsupportedCommand // Capability missing for the requested command
	StatusValueWordMissing   // Required parameter word absent
	StatusValueOutOfRange    // Parameter outside the accepted range
)

var statusText = [...]string{
	StatusOK:                    "ok",
	StatusUnhandled:             "unhandled",
	StatusExpectedCommandLetter: "expected command letter",
	StatusBadNumberFormat:       "bad number format",
	StatusUnsupportedCommand:    "unsupported command",
	StatusValueWordMissing:      "value word missing",
	StatusValueOutOfRange:       "value out of range",
}

func (s Status) String() string {
	if int(s) < len(statusText) {
		return statusText[s]
	}
	return "status " + itoa(int(s))
}

// Error makes a non-OK status usable as an error value.
func (s Status) Error() string {
	return s.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	pos := len(buf)
	for n > 0 && pos > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}
