package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/havenchat/companion/internal/model/speech"
)

// DefaultTTSEndpoint 火山引擎单向流式TTS地址
const DefaultTTSEndpoint = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"

var (
	ErrEmptyText     = errors.New("TTS text is empty")
	ErrNoCredentials = errors.New("speech config is missing AppID or AccessToken")
)

const resourceMismatch = "resource ID is mismatched with speaker related resource"

// VolcengineSynthesizer 火山引擎TTS WebSocket客户端
type VolcengineSynthesizer struct {
	config   *speech.SpeechConfig
	endpoint string
	dialer   *websocket.Dialer
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

type ttsRequestBody struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string         `json:"speaker"`
		Text        string         `json:"text"`
		AudioParams ttsAudioParams `json:"audio_params"`
		Additions   string         `json:"additions,omitempty"`
		Language    string         `json:"language,omitempty"`
	} `json:"req_params"`
}

type ttsAudioParams struct {
	Format       string  `json:"format"`
	SampleRate   int     `json:"sample_rate"`
	SpeedRatio   float32 `json:"speed_ratio,omitempty"`
	VolumeRatio  float32 `json:"volume_ratio,omitempty"`
	Emotion      string  `json:"emotion,omitempty"`
	EmotionScale float32 `json:"emotion_scale,omitempty"`
}

// NewVolcengineSynthesizer 创建火山引擎TTS客户端，endpoint为空时使用默认地址
func NewVolcengineSynthesizer(config *speech.SpeechConfig, endpoint string) *VolcengineSynthesizer {
	if endpoint == "" {
		endpoint = DefaultTTSEndpoint
	}
	timeout := 30 * time.Second
	if config != nil && config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}
	return &VolcengineSynthesizer{
		config:   config,
		endpoint: endpoint,
		dialer:   &websocket.Dialer{HandshakeTimeout: timeout},
	}
}

// Synthesize 把 req.Text 合成为音频，依次尝试发音人与资源 ID 直到服务端接受
func (c *VolcengineSynthesizer) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	appKey, accessKey, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	encoding := strings.TrimSpace(req.Format)
	if encoding == "" || encoding == "wav" {
		encoding = "mp3"
	}

	speakers := resolveSpeakerCandidates(req.Voice, c.config.TTSVoice)
	var lastMismatch error

	for speakerIdx, speakerID := range speakers {
		for resourceIdx, resourceID := range resolveResourceCandidates(speakerID) {
			resp, attemptErr := c.synthesizeWith(ctx, req, appKey, accessKey, speakerID, encoding, resourceID)
			if attemptErr == nil {
				if resourceIdx > 0 || speakerIdx > 0 {
					log.Printf("[tts] fallback voice=%s resource=%s succeeded", speakerID, resourceID)
				}
				return resp, nil
			}
			if !isResourceMismatchError(attemptErr) {
				return nil, attemptErr
			}
			log.Printf("[tts] voice %s resource %s mismatch: %v", speakerID, resourceID, attemptErr)
			lastMismatch = attemptErr
		}
	}

	if lastMismatch != nil {
		return nil, lastMismatch
	}
	return nil, fmt.Errorf("TTS synthesis failed: no compatible resource id for voices %v", speakers)
}

func (c *VolcengineSynthesizer) synthesizeWith(
	ctx context.Context,
	req *speech.TTSRequest,
	appKey, accessKey, speakerID, encoding, resourceID string,
) (*speech.TTSResponse, error) {
	connectID := uuid.NewString()

	header := http.Header{}
	header.Set("X-Api-App-Key", appKey)
	header.Set("X-Api-Access-Key", accessKey)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS WebSocket: %w", err)
	}
	defer conn.Close()

	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			log.Printf("[tts] connected, logid=%s", logid)
		}
	}

	// 调用方放弃时解除 ReadMessage 阻塞
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	body, uid := c.buildRequest(req, speakerID, encoding)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, NewClientRequest(payload).Encode()); err != nil {
		return nil, fmt.Errorf("failed to send TTS request: %w", err)
	}

	var (
		audio    bytes.Buffer
		reqID    string
		duration int64
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to read TTS response: %w", err)
		}

		frame, err := DecodeFrame(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode TTS message: %w", err)
		}

		switch frame.Header.MessageType {
		case ErrorMessage:
			payload, err := frame.PayloadBytes()
			if err != nil {
				return nil, fmt.Errorf("TTS error message decode failed: %w", err)
			}
			return nil, fmt.Errorf("TTS error %d: %s", frame.ErrorCode, string(payload))

		case AudioOnlyServerResponse:
			chunk, err := frame.PayloadBytes()
			if err != nil {
				return nil, fmt.Errorf("failed to decompress audio chunk: %w", err)
			}
			audio.Write(chunk)
			if !frame.IsLastPacket() {
				continue
			}

		case FullServerResponse:
			payload, err := frame.PayloadBytes()
			if err != nil {
				return nil, fmt.Errorf("failed to decompress TTS response payload: %w", err)
			}

			var serverResp ttsServerMessage
			if len(payload) > 0 {
				if err := json.Unmarshal(payload, &serverResp); err != nil {
					log.Printf("[tts] failed to unmarshal response payload: %v", err)
				} else {
					if serverResp.Code != 0 && serverResp.Code != 3000 {
						return nil, fmt.Errorf("TTS API error %d: %s", serverResp.Code, serverResp.Message)
					}
					if serverResp.ReqID != "" {
						reqID = serverResp.ReqID
					}
					if serverResp.Addition.Duration != "" {
						if parsed, err := strconv.ParseInt(serverResp.Addition.Duration, 10, 64); err == nil {
							duration = parsed
						}
					}
					if serverResp.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(serverResp.Data)
						if err != nil {
							return nil, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
						}
						audio.Write(chunk)
					}
				}
			}

			finished := frame.Header.MessageFlags&WithEvent == WithEvent && frame.EventType == EventTypeSessionFinished
			if !finished && !frame.IsLastPacket() && serverResp.Sequence >= 0 {
				continue
			}

		default:
			log.Printf("[tts] unexpected message type: %d", frame.Header.MessageType)
			continue
		}

		if audio.Len() == 0 {
			return nil, fmt.Errorf("TTS audio is empty")
		}
		if reqID == "" {
			reqID = connectID
		}
		return &speech.TTSResponse{
			SessionID: uid,
			AudioData: audio.Bytes(),
			Duration:  duration,
			Format:    encoding,
			RequestID: reqID,
			CreatedAt: time.Now(),
		}, nil
	}
}

// buildRequest 构建符合火山引擎API格式的TTS请求
func (c *VolcengineSynthesizer) buildRequest(req *speech.TTSRequest, speakerID, encoding string) (*ttsRequestBody, string) {
	body := &ttsRequestBody{}

	uid := strings.TrimSpace(req.SessionID)
	if uid == "" {
		uid = uuid.NewString()
	}
	body.User.UID = uid

	body.ReqParams.Speaker = speakerID
	body.ReqParams.Text = req.Text
	body.ReqParams.AudioParams.Format = encoding
	body.ReqParams.AudioParams.SampleRate = 24000

	speed := req.Speed
	if speed <= 0 {
		speed = c.config.TTSSpeed
	}
	if speed > 0 && speed != 1.0 {
		body.ReqParams.AudioParams.SpeedRatio = speed
	}

	volume := req.Volume
	if volume <= 0 {
		volume = c.config.TTSVolume
	}
	if volume > 0 && volume != 1.0 {
		body.ReqParams.AudioParams.VolumeRatio = volume
	}

	if req.Emotion != "" {
		body.ReqParams.AudioParams.Emotion = req.Emotion
		body.ReqParams.AudioParams.EmotionScale = req.EmotionScale
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = strings.TrimSpace(c.config.TTSLanguage)
	}
	body.ReqParams.Language = language
	body.ReqParams.Additions = `{"disable_markdown_filter":false}`

	return body, uid
}

// resolveCredentials 返回规范化后的 AppID 与 AccessToken
func resolveCredentials(cfg *speech.SpeechConfig) (string, string, error) {
	if cfg == nil {
		return "", "", ErrNoCredentials
	}

	appID := strings.TrimSpace(cfg.AppID)
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		token = strings.TrimSpace(cfg.APIKey)
	}
	if appID == "" || token == "" {
		return "", "", ErrNoCredentials
	}
	return appID, token, nil
}

func resolveResourceCandidates(voice string) []string {
	const (
		defaultResource = "volc.service_type.10029"
		megaResource    = "volc.megatts.default"
		seedResource    = "seed-tts-2.0"
	)

	voice = strings.TrimSpace(voice)
	if strings.HasPrefix(voice, "S_") {
		return []string{megaResource}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{seedResource, defaultResource}
		}
	}
	return []string{defaultResource, seedResource}
}

// voiceAliases 友好名称到火山引擎发音人 ID 的映射
var voiceAliases = map[string]string{
	"calm-female": "en_female_candice_emo_v2_mars_bigtts",
	"calm-male":   "en_male_glen_emo_v2_mars_bigtts",
	"warm-female": "en_female_skye_emo_v2_mars_bigtts",
	"warm-male":   "en_male_corey_emo_v2_mars_bigtts",
	"en_default":  "en_female_amy_jupiter_bigtts",
}

// NormalizeVoiceAlias 解析友好音色名，未知名称原样返回
func NormalizeVoiceAlias(voice string) string {
	voice = strings.TrimSpace(voice)
	if mapped, ok := voiceAliases[strings.ToLower(voice)]; ok {
		return mapped
	}
	return voice
}

func resolveSpeakerCandidates(requested, fallback string) []string {
	var candidates []string
	add := func(s string) {
		s = NormalizeVoiceAlias(s)
		if s == "" {
			return
		}
		for _, existing := range candidates {
			if strings.EqualFold(existing, s) {
				return
			}
		}
		candidates = append(candidates, s)
	}

	add(requested)
	add(fallback)
	return candidates
}

func isResourceMismatchError(err error) bool {
	return err != nil && strings.Contains(err.Error(), resourceMismatch)
}
