package core

// Foreground event chains. Registration order is preserved and every
// registered handler runs on dispatch. These fire from the command-processing
// context only, never from the step interrupt.

// ProgramFlow identifies how a program ended.
type ProgramFlow uint8

const (
	ProgramFlowCompletedM2  ProgramFlow = 2
	ProgramFlowCompletedM30 ProgramFlow = 30
)

// Event handler signatures
type (
	SpindleSelectedFunc  func(s *Spindle)
	ProgramCompletedFunc func(flow ProgramFlow, checkMode bool)
	ParserInitFunc       func()
	SettingsChangedFunc  func()
	ReportOptionsFunc    func(newOpt bool)
	DriverResetFunc      func()
)

// Events holds the registered handler chains.
type Events struct {
	spindleSelected  []SpindleSelectedFunc
	programCompleted []ProgramCompletedFunc
	parserInit       []ParserInitFunc
	settingsChanged  []SettingsChangedFunc
	reportOptions    []ReportOptionsFunc
	driverReset      []DriverResetFunc
}

// OnSpindleSelected registers a handler for driver selection changes.
func (e *Events) OnSpindleSelected(f SpindleSelectedFunc) {
	e.spindleSelected = append(e.spindleSelected, f)
}

// SpindleSelected dispatches a driver selection change.
func (e *Events) SpindleSelected(s *Spindle) {
	for _, f := range e.spindleSelected {
		f(s)
	}
}

// OnProgramCompleted registers a handler for program completion.
func (e *Events) OnProgramCompleted(f ProgramCompletedFunc) {
	e.programCompleted = append(e.programCompleted, f)
}

// ProgramCompleted dispatches program completion.
func (e *Events) ProgramCompleted(flow ProgramFlow, checkMode bool) {
	for _, f := range e.programCompleted {
		f(flow, checkMode)
	}
}

// OnParserInit registers a handler for parser (re)initialization.
func (e *Events) OnParserInit(f ParserInitFunc) {
	e.parserInit = append(e.parserInit, f)
}

// ParserInit dispatches parser (re)initialization.
func (e *Events) ParserInit() {
	for _, f := range e.parserInit {
		f()
	}
}

// OnSettingsChanged registers a handler for settings changes.
func (e *Events) OnSettingsChanged(f SettingsChangedFunc) {
	e.settingsChanged = append(e.settingsChanged, f)
}

// SettingsChanged dispatches a settings change.
func (e *Events) SettingsChanged() {
	for _, f := range e.settingsChanged {
		f()
	}
}

// OnReportOptions registers a handler for capability report generation.
func (e *Events) OnReportOptions(f ReportOptionsFunc) {
	e.reportOptions = append(e.reportOptions, f)
}

// ReportOptions dispatches capability report generation.
func (e *Events) ReportOptions(newOpt bool) {
	for _, f := range e.reportOptions {
		f(newOpt)
	}
}

// OnDriverReset registers a handler for machine reset.
func (e *Events) OnDriverReset(f DriverResetFunc) {
	e.driverReset = append(e.driverReset, f)
}

// DriverReset dispatches machine reset.
func (e *Events) DriverReset() {
	for _, f := range e.driverReset {
		f()
	}
}
