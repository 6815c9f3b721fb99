package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// vector store changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AdmissionChanged is true when API keys, allowed origins, or rate
	// limits differ. The guard and limiter are rebuilt from the new values.
	AdmissionChanged bool

	// AnswerTuningChanged is true when temperature or max_tokens differ.
	AnswerTuningChanged bool
}

// Changed reports whether any hot-reloadable field differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.AdmissionChanged || d.AnswerTuningChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Admission != new.Admission {
		d.AdmissionChanged = true
	}

	if old.Answer != new.Answer {
		d.AnswerTuningChanged = true
	}

	return d
}
