package schema

// TranscriptionSegment is one span returned by the speech-to-text backend.
// Start and End are seconds relative to the transcribed file.
type TranscriptionSegment struct {
	Id           int     `json:"id"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	AvgLogprob   float64 `json:"avg_logprob"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

type TranscriptionResult struct {
	Segments []TranscriptionSegment `json:"segments"`
	Text     string                 `json:"text"`
	Language string                 `json:"language,omitempty"`
	Duration float64                `json:"duration,omitempty"`
}

// Segment is a recognized span attributed to one speaker. Before rebasing the
// offsets are relative to the owning clip, afterwards to the session start.
type Segment struct {
	Speaker      string  `json:"speaker"`
	Text         string  `json:"text"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Confidence   float64 `json:"confidence"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

func (s Segment) Duration() float64 {
	return s.End - s.Start
}
