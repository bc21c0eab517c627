package mood

import (
	"math"
	"strings"
)

// Mood is the feeling detected in a user utterance.
type Mood string

const (
	Neutral  Mood = "neutral"
	Anxious  Mood = "anxious"
	Sad      Mood = "sad"
	Angry    Mood = "angry"
	Lonely   Mood = "lonely"
	Hopeful  Mood = "hopeful"
	Grateful Mood = "grateful"
)

// Tone is an emotion label the TTS service accepts.
type Tone string

const (
	ToneNeutral  Tone = "neutral"
	ToneComfort  Tone = "comfort"
	ToneTender   Tone = "tender"
	ToneHappy    Tone = "happy"
	ToneMagnetic Tone = "magnetic"
)

// Decision carries the detected mood and the voice tone a reply should use.
type Decision struct {
	Mood  Mood
	Tone  Tone
	Scale float32
	Score int
}

type bucket struct {
	mood     Mood
	keywords []string
}

// Order matters: on equal scores the earlier bucket wins.
var moodBuckets = []bucket{
	{Anxious, []string{
		"anxious", "anxiety", "worried", "worry", "nervous", "panic", "scared", "afraid", "overwhelmed",
		"stressed", "stress", "on edge", "can't breathe", "racing thoughts", "can't sleep", "restless", "tense",
	}},
	{Sad, []string{
		"sad", "depressed", "down", "hopeless", "empty", "crying", "cry", "grief", "miss them", "hurt",
		"worthless", "tired of", "numb", "heartbroken", "unhappy", "upset", "lost",
	}},
	{Angry, []string{
		"angry", "furious", "mad", "annoyed", "frustrated", "irritated", "hate", "rage", "fed up", "sick of",
	}},
	{Lonely, []string{
		"lonely", "alone", "isolated", "no one", "nobody", "left out", "no friends", "by myself",
	}},
	{Hopeful, []string{
		"better", "hopeful", "excited", "looking forward", "proud", "happy", "good day", "improving", "progress",
		"relieved", "great", "awesome",
	}},
	{Grateful, []string{
		"thank you", "thanks", "grateful", "appreciate", "helped",
	}},
}

var toneBuckets = []struct {
	tone     Tone
	keywords []string
}{
	{ToneComfort, []string{
		"i'm here", "you're not alone", "it's okay", "that sounds hard", "that sounds really", "i hear you",
		"take your time", "breathe", "you're safe", "with you", "understandable",
	}},
	{ToneTender, []string{
		"gently", "slowly", "softly", "calm", "rest", "be kind to yourself", "one step at a time",
	}},
	{ToneHappy, []string{
		"glad", "wonderful", "that's great", "so happy", "proud of you", "congratulations", "well done",
	}},
	{ToneMagnetic, []string{
		"important", "please reach out", "emergency", "crisis", "hotline", "professional", "right away",
	}},
}

// Analyze picks the voice tone for a reply from the user utterance and the reply text.
func Analyze(userUtterance, reply string) Decision {
	mood, moodScore := scoreMood(userUtterance)
	tone, toneScore := scoreTone(reply)

	// A reply without an obvious tone takes one that answers the user's mood.
	if toneScore == 0 && moodScore > 0 {
		tone, toneScore = toneForMood(mood), moodScore
	}

	if toneScore == 0 {
		return Decision{Mood: mood, Tone: ToneNeutral, Scale: 3, Score: 0}
	}

	scale := 2 + float32(toneScore)/4
	switch tone {
	case ToneComfort, ToneTender:
		scale = float32(math.Min(3.5, float64(scale)))
	case ToneMagnetic:
		scale = float32(math.Min(4.0, float64(scale)))
	}
	if scale < 1 {
		scale = 1
	}
	if scale > 5 {
		scale = 5
	}

	return Decision{Mood: mood, Tone: tone, Scale: scale, Score: toneScore}
}

// Detect returns only the mood of an utterance.
func Detect(utterance string) Mood {
	mood, _ := scoreMood(utterance)
	return mood
}

func scoreMood(text string) (Mood, int) {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Neutral, 0
	}

	best, bestScore := Neutral, 0
	for _, b := range moodBuckets {
		score := countHits(normalized, b.keywords) * 3
		if b.mood == Hopeful {
			score += strings.Count(text, "!")
		}
		if score > bestScore {
			best, bestScore = b.mood, score
		}
	}
	return best, bestScore
}

func scoreTone(text string) (Tone, int) {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return ToneNeutral, 0
	}

	best, bestScore := ToneNeutral, 0
	for _, b := range toneBuckets {
		if score := countHits(normalized, b.keywords) * 3; score > bestScore {
			best, bestScore = b.tone, score
		}
	}
	return best, bestScore
}

func countHits(normalized string, keywords []string) int {
	hits := 0
	for _, word := range keywords {
		if strings.Contains(normalized, word) {
			hits++
		}
	}
	return hits
}

func toneForMood(m Mood) Tone {
	switch m {
	case Anxious:
		return ToneTender
	case Sad, Lonely:
		return ToneComfort
	case Angry:
		return ToneMagnetic
	case Hopeful, Grateful:
		return ToneHappy
	default:
		return ToneNeutral
	}
}
