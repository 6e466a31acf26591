package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/antoniostano/gembot/internal/gemini"
	"github.com/antoniostano/gembot/internal/history"
)

func turn(role, content string) history.Turn {
	return history.Turn{Role: role, Content: content}
}

func TestComposePlainMessage(t *testing.T) {
	c := NewComposer(10)
	parts := c.Compose(nil, "", "привет")

	if len(parts) != 1 {
		t.Fatalf("parts = %d, want 1", len(parts))
	}
	if parts[0].Text != "привет" {
		t.Fatalf("message part = %q", parts[0].Text)
	}
}

func TestComposeOrderWithBlockAndHistory(t *testing.T) {
	c := NewComposer(10)
	turns := []history.Turn{
		turn(history.RoleUser, "как дела?"),
		turn(history.RoleAssistant, "отлично"),
	}
	parts := c.Compose(turns, "Актуальная дата и время: сегодня.", "а теперь?")

	if len(parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(parts))
	}
	if !strings.Contains(parts[0].Text, "актуальные данные") {
		t.Fatalf("first part missing instruction: %q", parts[0].Text)
	}
	if !strings.Contains(parts[0].Text, "Актуальная дата и время") {
		t.Fatalf("first part missing fetched block: %q", parts[0].Text)
	}
	if !strings.Contains(parts[1].Text, "Пользователь: как дела?") ||
		!strings.Contains(parts[1].Text, "Ассистент: отлично") {
		t.Fatalf("history part = %q", parts[1].Text)
	}
	if parts[2].Text != "а теперь?" {
		t.Fatalf("message part = %q", parts[2].Text)
	}
}

func TestComposeKeepsFewerTurnsWithBlock(t *testing.T) {
	c := NewComposer(10)
	var turns []history.Turn
	for i := 0; i < 20; i++ {
		turns = append(turns, turn(history.RoleUser, fmt.Sprintf("msg-%d", i)))
	}

	plain := c.Compose(turns, "", "вопрос")
	if !strings.Contains(plain[0].Text, "msg-10") || strings.Contains(plain[0].Text, "msg-9\n") {
		t.Fatalf("plain history window wrong: %q", plain[0].Text)
	}

	augmented := c.Compose(turns, "блок", "вопрос")
	ctx := augmented[1].Text
	if !strings.Contains(ctx, "msg-17") || strings.Contains(ctx, "msg-16\n") {
		t.Fatalf("augmented history window wrong: %q", ctx)
	}
}

func TestComposeTruncatesLongTurns(t *testing.T) {
	c := NewComposer(10)
	turns := []history.Turn{turn(history.RoleUser, strings.Repeat("ю", 500))}

	parts := c.Compose(turns, "", "вопрос")
	lines := strings.Split(strings.TrimPrefix(parts[0].Text, "Контекст диалога:\n"), "\n")
	runes := []rune(strings.TrimPrefix(lines[0], "Пользователь: "))
	if len(runes) != turnCharBudget {
		t.Fatalf("truncated turn = %d runes, want %d", len(runes), turnCharBudget)
	}
}

func TestComposeWithImagePutsImageBeforeCaption(t *testing.T) {
	c := NewComposer(10)
	img := gemini.ImagePart("image/jpeg", "aGVsbG8=")

	parts := c.ComposeWithImage(nil, "", "что это?", img)
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(parts))
	}
	if parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "image/jpeg" {
		t.Fatalf("first part is not the image: %+v", parts[0])
	}
	if parts[1].Text != "что это?" {
		t.Fatalf("caption part = %q", parts[1].Text)
	}
}

func TestComposeWithImageDefaultCaption(t *testing.T) {
	c := NewComposer(10)
	parts := c.ComposeWithImage(nil, "", "", gemini.ImagePart("image/jpeg", "aGVsbG8="))
	if !strings.Contains(parts[len(parts)-1].Text, "фотографии") {
		t.Fatalf("default caption missing: %q", parts[len(parts)-1].Text)
	}
}
