package model

import "time"

// MaxRecordingSeconds is the inclusive ceiling for a single recording.
const MaxRecordingSeconds = 120

// DefaultSampleText is offered to operators who want to try the pipeline without a microphone.
const DefaultSampleText = "I have a Canon EOS R5 camera in excellent condition. It's a professional mirrorless camera with 45 megapixel sensor. Serial number is 123456789. I purchased it for 300,000 rupees and it's currently worth about 250,000 rupees. It's stored in cabinet A, shelf 2."

// Artifact is the single payload handed from capture to processing.
// It is never mutated after construction.
type Artifact struct {
	Kind            ArtifactKind `json:"kind"`
	Bytes           []byte       `json:"-"`
	MimeHint        string       `json:"mimeHint,omitempty"`
	Text            string       `json:"text,omitempty"`
	DurationSeconds int          `json:"durationSeconds"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// NewAudioArtifact copies bytes so the caller's buffer can be reused.
func NewAudioArtifact(data []byte, mimeHint string, durationSeconds int) *Artifact {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Artifact{
		Kind:            ArtifactKindAudio,
		Bytes:           buf,
		MimeHint:        mimeHint,
		DurationSeconds: durationSeconds,
		CreatedAt:       time.Now(),
	}
}

// NewSampleArtifact builds a text stand-in for a recording.
func NewSampleArtifact(text string) *Artifact {
	return &Artifact{
		Kind:      ArtifactKindSampleText,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// Size returns the payload size in bytes.
func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	if a.Kind == ArtifactKindSampleText {
		return len(a.Text)
	}
	return len(a.Bytes)
}

// CaptureState is a snapshot of the capture session.
type CaptureState struct {
	Status         CaptureStatus `json:"status"`
	ElapsedSeconds int           `json:"elapsedSeconds"`
	Artifact       *Artifact     `json:"artifact"`
	LastError      *string       `json:"lastError"`
}
