package gcode

// G-code line parsing. Produces a Block with the command letter/number and a
// word bitmask plus per-letter values; validation claims words by clearing
// their flag so leftover words can be rejected.

// WordFlags is a bitmask of parameter letters seen on a block.
type WordFlags uint32

func wordBit(letter byte) WordFlags {
	if letter < 'A' || letter > 'Z' {
		return 0
	}
	return 1 << (letter - 'A')
}

// Has reports whether the word for letter is present.
func (w WordFlags) Has(letter byte) bool {
	return w&wordBit(letter) != 0
}

// Set marks the word for letter as present.
func (w *WordFlags) Set(letter byte) {
	*w |= wordBit(letter)
}

// Clear claims the word for letter.
func (w *WordFlags) Clear(letter byte) {
	*w &^= wordBit(letter)
}

// Block is a parsed command line.
type Block struct {
	Letter  byte // Command letter: 'G', 'M' or 'T', 0 for empty lines
	Number  int  // Command number
	MCode   MCode
	Sync    bool // Execute only after queued motion has drained
	Words   WordFlags
	Comment string

	values [26]float32
}

// Value returns the parameter value for letter (0 when absent).
func (b *Block) Value(letter byte) float32 {
	if letter < 'A' || letter > 'Z' {
		return 0
	}
	return b.values[letter-'A']
}

func (b *Block) setValue(letter byte, v float32) {
	if letter >= 'A' && letter <= 'Z' {
		b.values[letter-'A'] = v
	}
}

// ParseLine parses a single line of G-code. Empty and comment-only lines
// return a block with Letter == 0.
func ParseLine(line string) (*Block, Status) {
	b := &Block{}

	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}

	if i >= len(line) {
		return b, StatusOK
	}

	if line[i] == ';' || line[i] == '(' {
		b.Comment = line[i:]
		return b, StatusOK
	}

	// Command letter and number
	c := toUpper(line[i])
	if c != 'G' && c != 'M' && c != 'T' {
		return nil, StatusExpectedCommandLetter
	}
	b.Letter = c
	i++

	num, newPos := parseInt(line, i)
	if newPos == i {
		return nil, StatusBadNumberFormat
	}
	b.Number = num
	i = newPos

	if b.Letter == 'M' {
		b.MCode = MCode(b.Number)
	}

	// Parameter words
	for i < len(line) {
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		if i >= len(line) {
			break
		}

		if line[i] == ';' || line[i] == '(' {
			b.Comment = line[i:]
			break
		}

		if !isLetter(line[i]) {
			return nil, StatusExpectedCommandLetter
		}

		letter := toUpper(line[i])
		i++

		value, newPos := parseFloat(line, i)
		if newPos == i {
			return nil, StatusBadNumberFormat
		}
		b.Words.Set(letter)
		b.setValue(letter, value)
		i = newPos
	}

	return b, StatusOK
}

// parseInt parses an integer from the string starting at pos
func parseInt(s string, pos int) (int, int) {
	if pos >= len(s) {
		return 0, pos
	}

	start := pos
	negative := false
	if s[pos] == '-' {
		negative = true
		pos++
	} else if s[pos] == '+' {
		pos++
	}

	digits := pos
	value := 0
	for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
		value = value*10 + int(s[pos]-'0')
		pos++
	}

	if pos == digits {
		return 0, start // No digits found
	}

	if negative {
		value = -value
	}
	return value, pos
}

// parseFloat parses a floating point number from the string starting at pos
func parseFloat(s string, pos int) (float32, int) {
	if pos >= len(s) {
		return 0, pos
	}

	start := pos
	negative := false
	if s[pos] == '-' {
		negative = true
		pos++
	} else if s[pos] == '+' {
		pos++
	}

	digits := pos
	value := float32(0)
	for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
		value = value*10 + float32(s[pos]-'0')
		pos++
	}

	if pos < len(s) && s[pos] == '.' {
		pos++
		scale := float32(0.1)
		for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
			value += float32(s[pos]-'0') * scale
			scale *= 0.1
			pos++
		}
	}

	if pos == digits {
		return 0, start // No digits found
	}

	if negative {
		value = -value
	}
	return value, pos
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func toUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}
