package speech

import (
	"strings"

	"github.com/havenchat/companion/internal/analysis/mood"
)

var emotionVoiceWhitelist = map[string]struct{}{
	"en_female_candice_emo_v2_mars_bigtts": {},
	"en_female_skye_emo_v2_mars_bigtts":    {},
	"en_male_glen_emo_v2_mars_bigtts":      {},
	"en_male_sylus_emo_v2_mars_bigtts":     {},
	"en_male_corey_emo_v2_mars_bigtts":     {},
}

// ComputeEmotionParameters 根据音色与情绪分析结果计算TTS情绪参数。
func ComputeEmotionParameters(voice string, decision mood.Decision) (enable bool, label string, scale float32) {
	if decision.Tone == mood.ToneNeutral || decision.Score <= 0 {
		return false, "", 0
	}
	if !supportsEmotion(voice) {
		return false, "", 0
	}

	scale = decision.Scale
	if scale <= 0 {
		scale = 3
	}
	if scale < 1 {
		scale = 1
	}
	if scale > 5 {
		scale = 5
	}
	return true, string(decision.Tone), scale
}

func supportsEmotion(voice string) bool {
	normalized := strings.ToLower(strings.TrimSpace(voice))
	if normalized == "" {
		return false
	}
	if _, ok := emotionVoiceWhitelist[normalized]; ok {
		return true
	}
	return strings.Contains(normalized, "_emo_") || strings.HasSuffix(normalized, "_emo")
}
