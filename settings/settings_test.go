package settings

import (
	"testing"

	"laserhal/core"
)

func TestRegisterAndValue(t *testing.T) {
	s := NewStore(core.NewHAL())

	s.Register(LaserPPIRate, 600)
	s.Register(LaserPPIPulseLength, 1500)

	if v := s.Value(LaserPPIRate); v != 600 {
		t.Errorf("rate = %v, want 600", v)
	}
	if v := s.Value(LaserPPIPulseLength); v != 1500 {
		t.Errorf("pulse length = %v, want 1500", v)
	}
	if v := s.Value(ID(999)); v != 0 {
		t.Errorf("unregistered = %v, want 0", v)
	}
}

func TestRegisterKeepsCurrentValue(t *testing.T) {
	s := NewStore(core.NewHAL())

	s.Register(LaserPPIRate, 600)
	if err := s.Set(LaserPPIRate, 254); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// A second registration (another plugin init) must not reset the value
	s.Register(LaserPPIRate, 600)
	if v := s.Value(LaserPPIRate); v != 254 {
		t.Errorf("value = %v, want 254", v)
	}
}

func TestSetFiresChangedChain(t *testing.T) {
	hal := core.NewHAL()
	s := NewStore(hal)

	var fired int
	hal.Events.OnSettingsChanged(func() { fired++ })

	s.Register(LaserPPIRate, 600)
	if err := s.Set(LaserPPIRate, 300); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if fired != 1 {
		t.Errorf("changed chain fired %d times, want 1", fired)
	}
}

func TestSetUnknownSetting(t *testing.T) {
	hal := core.NewHAL()
	s := NewStore(hal)

	var fired int
	hal.Events.OnSettingsChanged(func() { fired++ })

	if err := s.Set(ID(999), 1); err == nil {
		t.Fatal("unknown setting accepted")
	}
	if fired != 0 {
		t.Error("changed chain fired for rejected set")
	}
}

func TestRestoreDefaults(t *testing.T) {
	hal := core.NewHAL()
	s := NewStore(hal)

	var fired int
	hal.Events.OnSettingsChanged(func() { fired++ })

	s.Register(LaserPPIRate, 600)
	s.Register(LaserPPIPulseLength, 1500)
	s.Set(LaserPPIRate, 100)
	s.Set(LaserPPIPulseLength, 100)
	fired = 0

	s.RestoreDefaults()

	if v := s.Value(LaserPPIRate); v != 600 {
		t.Errorf("rate = %v, want default 600", v)
	}
	if v := s.Value(LaserPPIPulseLength); v != 1500 {
		t.Errorf("pulse length = %v, want default 1500", v)
	}
	if fired != 1 {
		t.Errorf("changed chain fired %d times, want 1", fired)
	}
}
