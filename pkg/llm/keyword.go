package llm

import (
	"context"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/teslashibe/go-avatar/pkg/face"
)

// KeywordIntensity is the intensity reported for a keyword match.
const KeywordIntensity = 0.7

type keywordRule struct {
	emotion face.Emotion
	words   []string
}

// Rules are checked in order; the first rule with a matching word wins.
// Words are stored folded (lowercase, no accents).
var keywordRules = []keywordRule{
	{face.EmotionHappy, []string{"feliz", "alegre", "otimo", "excelente", "happy", "glad", "great", "awesome"}},
	{face.EmotionSad, []string{"triste", "chateado", "sad", "upset", "unhappy"}},
	{face.EmotionAngry, []string{"raiva", "irritado", "angry", "furious", "annoyed"}},
	{face.EmotionSurprised, []string{"surpresa", "incrivel", "uau", "wow", "surprised", "amazing", "incredible"}},
}

// Keyword is an offline classifier that looks for emotion words in the
// utterance. It never fails and echoes no response text.
type Keyword struct{}

// Classify implements Classifier.
func (Keyword) Classify(_ context.Context, text string) (Reply, error) {
	e := DetectEmotion(text)
	intensity := DefaultIntensity
	if e != face.EmotionNeutral {
		intensity = KeywordIntensity
	}
	return Reply{Emotion: e, EmotionIntensity: intensity}, nil
}

// DetectEmotion returns the emotion suggested by keywords in text, or
// neutral. Matching is on whole words and ignores case and accents. A
// keyword within two words after a negation ("not", "nao", "never") does
// not count.
func DetectEmotion(text string) face.Emotion {
	words := Words(text)
	for _, rule := range keywordRules {
		for i, w := range words {
			if slices.Contains(rule.words, w) && !negated(words, i) {
				return rule.emotion
			}
		}
	}
	return face.EmotionNeutral
}

var negations = []string{
	"not", "no", "never", "dont", "doesnt", "didnt", "isnt", "arent", "wasnt", "werent", "aint",
	"nao", "nunca", "nem",
}

func negated(words []string, i int) bool {
	for j := max(0, i-2); j < i; j++ {
		if slices.Contains(negations, words[j]) {
			return true
		}
	}
	return false
}

// Words folds text and splits it into words. Apostrophes are dropped so
// "isn't" becomes "isnt".
func Words(text string) []string {
	folded := strings.NewReplacer("'", "", "’", "").Replace(Fold(text))
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Fold lowercases s and strips combining marks, so "Incrível" becomes
// "incrivel".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
