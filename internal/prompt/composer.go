package prompt

import (
	"fmt"
	"strings"

	"github.com/antoniostano/gembot/internal/gemini"
	"github.com/antoniostano/gembot/internal/history"
)

const (
	// Per-turn cap keeps old history from crowding out the actual question.
	turnCharBudget = 300

	userLabel      = "Пользователь"
	assistantLabel = "Ассистент"
)

// augmentedInstruction tells the model that the fetched block is
// authoritative and overrides its stale training data.
const augmentedInstruction = "Ниже приведены актуальные данные, полученные только что из надёжных источников. " +
	"Используй именно их при ответе, даже если они расходятся с твоими обучающими данными, " +
	"и не ссылайся на устаревшие сведения."

// Composer assembles model request parts from history, an optional
// augmentation block and the current message.
type Composer struct {
	contextTurns int
}

// NewComposer caps how many history turns a prompt may carry. When an
// augmentation block is present fewer turns are kept so fetched facts fit
// the same budget.
func NewComposer(contextTurns int) *Composer {
	if contextTurns <= 0 {
		contextTurns = 10
	}
	return &Composer{contextTurns: contextTurns}
}

// Compose builds the part list for one model call. Order is fixed:
// instruction and fetched block first, then recent history, then the
// current message.
func (c *Composer) Compose(turns []history.Turn, block, message string) []gemini.Part {
	var parts []gemini.Part

	keep := c.contextTurns
	if block != "" {
		parts = append(parts, gemini.TextPart(augmentedInstruction+"\n\n"+block))
		keep = 3
	}

	if context := renderHistory(turns, keep); context != "" {
		parts = append(parts, gemini.TextPart("Контекст диалога:\n"+context))
	}

	parts = append(parts, gemini.TextPart(message))
	return parts
}

// ComposeWithImage is Compose plus an inline photo part ahead of the text
// question, so captions refer to the image that precedes them.
func (c *Composer) ComposeWithImage(turns []history.Turn, block, caption string, image gemini.Part) []gemini.Part {
	if caption == "" {
		caption = "Опиши, что изображено на этой фотографии."
	}
	parts := c.Compose(turns, block, caption)
	// The image slots in just before the final text part.
	last := parts[len(parts)-1]
	parts[len(parts)-1] = image
	return append(parts, last)
}

func renderHistory(turns []history.Turn, keep int) string {
	if len(turns) > keep {
		turns = turns[len(turns)-keep:]
	}
	var b strings.Builder
	for _, turn := range turns {
		label := userLabel
		if turn.Role == history.RoleAssistant {
			label = assistantLabel
		}
		fmt.Fprintf(&b, "%s: %s\n", label, truncateTurn(turn.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncateTurn(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= turnCharBudget {
		return string(runes)
	}
	return string(runes[:turnCharBudget-3]) + "..."
}
