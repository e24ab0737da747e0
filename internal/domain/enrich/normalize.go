package enrich

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns the canonical form of s: NFKC, Unicode case folding,
// punctuation and symbols removed, whitespace collapsed to single spaces.
// The same input always yields the same output.
func Normalize(s string) string {
	// A transform chain keeps state between calls, so each call builds its own.
	t := transform.Chain(
		norm.NFKC,
		cases.Fold(),
		runes.Remove(runes.In(unicode.P)),
		runes.Remove(runes.In(unicode.S)),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		// Only reachable on invalid UTF-8; fold what the stdlib can.
		out = strings.ToLower(strings.ToValidUTF8(s, ""))
	}
	return strings.Join(strings.Fields(out), " ")
}

// HashText returns the lowercase hex SHA-256 of the normalized text.
func HashText(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// EstimateTokens approximates the model token count as ceil(words * 1.3).
func EstimateTokens(normalized string) int {
	words := len(strings.Fields(normalized))
	return (words*13 + 9) / 10
}

// ukrainianLetters do not occur in Russian orthography.
const ukrainianLetters = "іїєґ"

// DetectLanguage guesses a BCP-47 tag from the dominant script of s.
// It returns "und" when no letters are present.
func DetectLanguage(s string) string {
	var latin, cyrillic, arabic, han, other int
	ukrainian := false
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r):
			continue
		case unicode.Is(unicode.Latin, r):
			latin++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
			if strings.ContainsRune(ukrainianLetters, unicode.ToLower(r)) {
				ukrainian = true
			}
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.Is(unicode.Han, r):
			han++
		default:
			other++
		}
	}

	best, tag := 0, language.Und
	pick := func(n int, t language.Tag) {
		if n > best {
			best, tag = n, t
		}
	}
	pick(latin, language.English)
	if ukrainian {
		pick(cyrillic, language.Ukrainian)
	} else {
		pick(cyrillic, language.Russian)
	}
	pick(arabic, language.Arabic)
	pick(han, language.Chinese)
	if other > best {
		tag = language.Und
	}
	return tag.String()
}
