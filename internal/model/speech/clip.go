package speech

// MIMETypeWebM is the container produced by microphone capture.
const MIMETypeWebM = "audio/webm"

// AudioClip is a finalized recording handed to transcription.
type AudioClip struct {
	Data     []byte
	MIMEType string
}

// Empty reports whether nothing was captured.
func (c AudioClip) Empty() bool {
	return len(c.Data) == 0
}
