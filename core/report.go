package core

// Capability report output. Plugins announce themselves from the
// report-options chain; platforms redirect the sink to their console.

var reportWriter func(string) = func(string) {}

// SetReportWriter sets the report output sink.
func SetReportWriter(w func(string)) {
	if w != nil {
		reportWriter = w
	}
}

// ReportPlugin announces an installed plugin with its version.
func ReportPlugin(name, version string) {
	reportWriter("[PLUGIN:" + name + " v" + version + "]")
}

// ReportFeedback writes a bracketed feedback message.
func ReportFeedback(msg string) {
	reportWriter("[MSG:" + msg + "]")
}
