package tts

// Default voice rendering parameters. These match the values the hosted
// providers recommend for consistent narration.
const (
	DefaultStability       = 0.5
	DefaultSimilarityBoost = 0.75
)

// VoiceSettings tunes how a voice renders an utterance.
type VoiceSettings struct {
	// Stability controls consistency between renditions (0.0-1.0). Lower
	// values produce more expressive but less predictable speech.
	Stability float64

	// SimilarityBoost controls how closely the output adheres to the
	// original voice (0.0-1.0).
	SimilarityBoost float64
}

// DefaultVoiceSettings returns the recommended settings for spoken answers.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       DefaultStability,
		SimilarityBoost: DefaultSimilarityBoost,
	}
}
