package speech

// TTSRequest 语音合成请求
type TTSRequest struct {
	SessionID string  `json:"sessionId"`
	Text      string  `json:"text"`
	Voice     string  `json:"voice"`
	Speed     float32 `json:"speed"`    // 语速倍率 0.5-2.0
	Volume    float32 `json:"volume"`   // 音量 0.0-1.0
	Format    string  `json:"format"`   // mp3, ogg_opus, pcm
	Language  string  `json:"language"` // en-US, zh-CN, etc.

	// 情绪参数，仅对支持情绪的音色生效
	Emotion      string  `json:"emotion,omitempty"`
	EmotionScale float32 `json:"emotionScale,omitempty"`
}
