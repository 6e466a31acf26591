package voice

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	speechURLPattern          = regexp.MustCompile(`https?://\S+`)
	speechFencedCodePattern   = regexp.MustCompile("(?s)```.*?```")
	speechInlineCodePattern   = regexp.MustCompile("`[^`]*`")
	speechMarkdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
)

// spokenAbbreviations maps technical abbreviations to letter-by-letter
// Russian renderings so TTS spells them out instead of mangling them.
var spokenAbbreviations = []struct {
	abbr   string
	spoken string
}{
	{"HTTPS", "Х-Т-Т-П-С"},
	{"HTTP", "Х-Т-Т-П"},
	{"HTML", "Х-Т-М-Л"},
	{"JSON", "Д-Ж-Е-Й-С-О-Н"},
	{"API", "А-П-И"},
	{"URL", "Ю-Р-Л"},
	{"CSS", "Ц-С-С"},
	{"SQL", "С-К-Л"},
	{"AI", "А-И"},
}

// SanitizeSpeechText removes markup/symbol noise from model text so TTS
// sounds conversational.
func SanitizeSpeechText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	raw = speechFencedCodePattern.ReplaceAllString(raw, " ")
	raw = speechInlineCodePattern.ReplaceAllString(raw, " ")
	raw = speechMarkdownLinkPattern.ReplaceAllString(raw, "$1")
	raw = speechURLPattern.ReplaceAllString(raw, " ")

	for _, entry := range spokenAbbreviations {
		raw = strings.ReplaceAll(raw, entry.abbr, entry.spoken)
	}

	raw = strings.NewReplacer(
		"*", " ",
		"_", " ",
		"\\", " ",
		"/", " ",
		"|", " ",
		"#", " ",
		"~", " ",
		"<", " ",
		">", " ",
	).Replace(raw)

	var b strings.Builder
	b.Grow(len(raw))
	prevSpace := true

	for _, r := range raw {
		switch {
		case r == '‍' || r == '️' || r == '⃣':
			continue
		case r == '\n' || r == '\r' || r == '\t' || unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
			continue
		case unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
			// Drops emoji and symbol-heavy glyphs that sound unnatural when spoken.
			continue
		case isSpeechSafePunctuation(r):
			b.WriteRune(r)
			prevSpace = false
		case unicode.IsPunct(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}

func isSpeechSafePunctuation(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ':', ';', '\'', '"', '-', '(', ')':
		return true
	default:
		return false
	}
}

// DetectLang picks the TTS language from the script of the text. Any
// Cyrillic presence selects Russian since replies are mostly Russian with
// occasional Latin terms mixed in.
func DetectLang(text string) string {
	for _, r := range text {
		if unicode.Is(unicode.Cyrillic, r) {
			return "ru"
		}
	}
	return "en"
}
