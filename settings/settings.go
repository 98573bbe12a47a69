package settings

// Numbered machine settings held in RAM. Persistence to non-volatile storage
// is a separate concern; this store only provides registered defaults,
// current values and the settings-changed notification plugins rely on to
// re-evaluate capabilities.

import (
	"errors"

	"laserhal/core"
)

// ID is a numbered setting identifier.
type ID uint16

// Laser modulation settings
const (
	LaserPPIRate        ID = 730 // Default pulses per inch
	LaserPPIPulseLength ID = 731 // Default pulse duration, microseconds
)

var errUnknownSetting = errors.New("unknown setting")

// Store holds registered settings and their current values.
type Store struct {
	hal      *core.HAL
	values   map[ID]float32
	defaults map[ID]float32
}

// NewStore creates an empty settings store bound to the HAL event chains.
func NewStore(h *core.HAL) *Store {
	return &Store{
		hal:      h,
		values:   make(map[ID]float32),
		defaults: make(map[ID]float32),
	}
}

// Register adds a setting with its default value. Registering an existing
// setting leaves its current value untouched.
func (s *Store) Register(id ID, def float32) {
	if _, exists := s.defaults[id]; !exists {
		s.defaults[id] = def
		s.values[id] = def
	}
}

// Value returns the current value of a setting, 0 when unregistered.
func (s *Store) Value(id ID) float32 {
	return s.values[id]
}

// Set updates a setting and fires the settings-changed chain.
func (s *Store) Set(id ID, value float32) error {
	if _, exists := s.defaults[id]; !exists {
		return errUnknownSetting
	}

	s.values[id] = value
	s.hal.Events.SettingsChanged()

	return nil
}

// RestoreDefaults resets every registered setting to its default and fires
// the settings-changed chain once.
func (s *Store) RestoreDefaults() {
	for id, def := range s.defaults {
		s.values[id] = def
	}
	s.hal.Events.SettingsChanged()
}
