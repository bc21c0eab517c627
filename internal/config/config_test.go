package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("BACKEND_URL", "")
	t.Setenv("BACKEND_TIMEOUT", "")
	t.Setenv("TRANSCRIBE_PROVIDER", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SPEECH_APP_ID", "")
	t.Setenv("SPEECH_ACCESS_TOKEN", "")
	t.Setenv("SPEECH_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":5173", cfg.Server.Addr)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, ProviderGemini, cfg.Transcription.Provider)
	assert.Equal(t, "Transcribe this WebM audio file:", cfg.Transcription.Instruction)
	assert.False(t, cfg.Transcription.Enabled())
	assert.False(t, cfg.Speech.Enabled)
	assert.True(t, cfg.Speech.AutoPlay)
	assert.Equal(t, "ffplay", cfg.Speech.Player)
	assert.NotEmpty(t, cfg.Preferences.File)
}

func TestLoadServerAddrVariants(t *testing.T) {
	cases := map[string]string{
		"9000":           ":9000",
		":9001":          ":9001",
		"127.0.0.1:9002": "127.0.0.1:9002",
	}
	for raw, want := range cases {
		t.Setenv("PORT", raw)
		got, err := loadServerConfig()
		require.NoError(t, err)
		assert.Equal(t, want, got.Addr)
	}

	t.Setenv("PORT", "80 80")
	_, err := loadServerConfig()
	assert.Error(t, err)
}

func TestLoadBackendTrimsSlashAndValidatesScheme(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://api.example.com/")
	t.Setenv("BACKEND_TIMEOUT", "5")
	cfg, err := loadBackendConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	t.Setenv("BACKEND_URL", "localhost:8000")
	_, err = loadBackendConfig()
	assert.Error(t, err)
}

func TestTranscriptionProviderSelection(t *testing.T) {
	t.Setenv("TRANSCRIBE_PROVIDER", "ark")
	t.Setenv("ARK_API_KEY", "key")
	t.Setenv("Model", "doubao-audio")
	cfg, err := loadTranscriptionConfig()
	require.NoError(t, err)
	assert.Equal(t, ProviderArk, cfg.Provider)
	assert.True(t, cfg.Enabled())

	t.Setenv("TRANSCRIBE_PROVIDER", "whisper")
	_, err = loadTranscriptionConfig()
	assert.Error(t, err)
}

func TestGeminiKeyFallback(t *testing.T) {
	t.Setenv("TRANSCRIBE_PROVIDER", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gm-key")
	cfg, err := loadTranscriptionConfig()
	require.NoError(t, err)
	assert.Equal(t, "gm-key", cfg.GoogleAPIKey)
	assert.True(t, cfg.Enabled())
}

func TestSpeechConfigInvalidBool(t *testing.T) {
	t.Setenv("SPEECH_AUTOPLAY", "sometimes")
	_, err := loadSpeechConfig()
	assert.Error(t, err)
}

func TestSpeechConfigEnabledWithToken(t *testing.T) {
	t.Setenv("SPEECH_AUTOPLAY", "")
	t.Setenv("SPEECH_APP_ID", "app")
	t.Setenv("SPEECH_ACCESS_TOKEN", "")
	t.Setenv("SPEECH_API_KEY", "legacy")
	cfg, err := loadSpeechConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "legacy", cfg.AccessToken)

	tts := cfg.TTSConfig()
	assert.Equal(t, "app", tts.AppID)
	assert.Equal(t, "legacy", tts.AccessToken)
	assert.Equal(t, cfg.TTSVoice, tts.TTSVoice)
}

func TestCORSOriginsSplit(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CORS_ORIGINS", " http://localhost:3000, ,http://127.0.0.1:3000 ")

	server, err := loadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, server.AllowedOrigins)
}
