package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	speechmodel "github.com/havenchat/companion/internal/model/speech"
)

// Config 聚合整个客户端的配置项。
type Config struct {
	Server        ServerConfig
	Backend       BackendConfig
	Transcription TranscriptionConfig
	Speech        SpeechConfig
	Audio         AudioConfig
	Preferences   PreferencesConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}

	transcription, err := loadTranscriptionConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:        server,
		Backend:       backend,
		Transcription: transcription,
		Speech:        speech,
		Audio:         loadAudioConfig(),
		Preferences:   loadPreferencesConfig(),
	}, nil
}

// ServerConfig 描述本地展示层 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "5173"
	}

	origins := splitList(os.Getenv("CORS_ORIGINS"))

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":5173" 或 "127.0.0.1:5173"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// BackendConfig 指向远端聊天服务。
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

func loadBackendConfig() (BackendConfig, error) {
	timeout, err := parseOptionalIntEnv("BACKEND_TIMEOUT")
	if err != nil {
		return BackendConfig{}, err
	}
	timeoutSeconds := 60
	if timeout != nil && *timeout > 0 {
		timeoutSeconds = *timeout
	}

	baseURL := strings.TrimRight(getEnvOrDefault("BACKEND_URL", "http://localhost:8000"), "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return BackendConfig{}, fmt.Errorf("invalid BACKEND_URL value: %q", baseURL)
	}

	return BackendConfig{
		BaseURL: baseURL,
		Timeout: time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// 语音转写 provider。
const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
)

// TranscriptionConfig 描述语音转写所用的大模型配置。
type TranscriptionConfig struct {
	Provider    string
	Instruction string
	Timeout     time.Duration

	GoogleAPIKey string
	GeminiModel  string

	Ark AIConfig
}

// Enabled 表示所选 provider 的凭证是否齐全。
func (c TranscriptionConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Ark.Enabled()
	default:
		return c.GoogleAPIKey != ""
	}
}

func loadTranscriptionConfig() (TranscriptionConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("TRANSCRIBE_PROVIDER", ProviderGemini))
	if provider != ProviderGemini && provider != ProviderArk {
		return TranscriptionConfig{}, fmt.Errorf("invalid TRANSCRIBE_PROVIDER value: %q", provider)
	}

	timeout, err := parseOptionalIntEnv("TRANSCRIBE_TIMEOUT")
	if err != nil {
		return TranscriptionConfig{}, err
	}
	timeoutSeconds := 60
	if timeout != nil && *timeout > 0 {
		timeoutSeconds = *timeout
	}

	ark, err := loadAIConfig()
	if err != nil {
		return TranscriptionConfig{}, err
	}

	apiKey := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}

	return TranscriptionConfig{
		Provider:     provider,
		Instruction:  getEnvOrDefault("TRANSCRIBE_INSTRUCTION", "Transcribe this WebM audio file:"),
		Timeout:      time.Duration(timeoutSeconds) * time.Second,
		GoogleAPIKey: apiKey,
		GeminiModel:  getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-pro"),
		Ark:          ark,
	}, nil
}

// AIConfig 描述 Ark 大模型相关配置。
type AIConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	return AIConfig{
		APIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:     strings.TrimSpace(os.Getenv("Model")),
		BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
	}, nil
}

// SpeechConfig 描述语音合成与播放配置。
type SpeechConfig struct {
	AppID       string
	AccessToken string
	APIKey      string
	TTSVoice    string
	TTSSpeed    float32
	TTSVolume   float32
	TTSLanguage string
	Timeout     int
	Player      string
	AutoPlay    bool
	MoodTone    bool
	Enabled     bool
}

// TTSConfig 转换为语音合成客户端使用的配置。
func (c SpeechConfig) TTSConfig() *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{
		AppID:       c.AppID,
		AccessToken: c.AccessToken,
		APIKey:      c.APIKey,
		TTSVoice:    c.TTSVoice,
		TTSSpeed:    c.TTSSpeed,
		TTSVolume:   c.TTSVolume,
		TTSLanguage: c.TTSLanguage,
		Timeout:     c.Timeout,
	}
}

func loadSpeechConfig() (SpeechConfig, error) {
	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}
	timeoutSeconds := 30 // 默认30秒
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	speed, err := parseOptionalFloat32Env("SPEECH_TTS_SPEED")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsSpeed := float32(1.0)
	if speed != nil {
		ttsSpeed = *speed
	}

	volume, err := parseOptionalFloat32Env("SPEECH_TTS_VOLUME")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsVolume := float32(1.0)
	if volume != nil {
		ttsVolume = *volume
	}

	autoPlay, err := parseBoolEnv("SPEECH_AUTOPLAY", true)
	if err != nil {
		return SpeechConfig{}, err
	}

	moodTone, err := parseBoolEnv("SPEECH_MOOD_TONE", true)
	if err != nil {
		return SpeechConfig{}, err
	}

	appID := strings.TrimSpace(os.Getenv("SPEECH_APP_ID"))
	apiKey := strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	accessToken := strings.TrimSpace(os.Getenv("SPEECH_ACCESS_TOKEN"))
	if accessToken == "" {
		accessToken = apiKey
	}

	return SpeechConfig{
		AppID:       appID,
		AccessToken: accessToken,
		APIKey:      apiKey,
		TTSVoice:    getEnvOrDefault("SPEECH_TTS_VOICE", "en_female_candice_emo_v2_mars_bigtts"),
		TTSSpeed:    ttsSpeed,
		TTSVolume:   ttsVolume,
		TTSLanguage: getEnvOrDefault("SPEECH_TTS_LANGUAGE", "en-US"),
		Timeout:     timeoutSeconds,
		Player:      getEnvOrDefault("SPEECH_PLAYER", "ffplay"),
		AutoPlay:    autoPlay,
		MoodTone:    moodTone,
		Enabled:     appID != "" && accessToken != "",
	}, nil
}

// AudioConfig 描述麦克风采集配置。
type AudioConfig struct {
	FFMPEG      string
	InputFormat string
	InputDevice string
}

func loadAudioConfig() AudioConfig {
	return AudioConfig{
		FFMPEG:      getEnvOrDefault("AUDIO_FFMPEG", "ffmpeg"),
		InputFormat: getEnvOrDefault("AUDIO_INPUT_FORMAT", "pulse"),
		InputDevice: getEnvOrDefault("AUDIO_INPUT_DEVICE", "default"),
	}
}

// PreferencesConfig 描述客户端本地持久化状态的位置。
type PreferencesConfig struct {
	File     string
	CacheDir string
}

func loadPreferencesConfig() PreferencesConfig {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	cacheBase, err := os.UserCacheDir()
	if err != nil || cacheBase == "" {
		cacheBase = os.TempDir()
	}

	return PreferencesConfig{
		File:     getEnvOrDefault("PREFERENCES_FILE", filepath.Join(base, "haven", "preferences.toml")),
		CacheDir: getEnvOrDefault("CACHE_DIR", filepath.Join(cacheBase, "haven")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
