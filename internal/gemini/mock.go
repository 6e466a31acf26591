package gemini

import (
	"context"
	"fmt"
	"strings"
)

// MockGenerator provides deterministic local replies when no API key is set.
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator { return &MockGenerator{} }

func (g *MockGenerator) Generate(ctx context.Context, parts []Part) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	var lastText string
	images := 0
	for _, p := range parts {
		if p.InlineData != nil {
			images++
			continue
		}
		if text := strings.TrimSpace(p.Text); text != "" {
			lastText = text
		}
	}

	if images > 0 {
		return fmt.Sprintf("Я вижу изображение (%d шт.). %s", images, lastText), nil
	}
	if lastText == "" {
		return "Я слушаю.", nil
	}
	return "Я услышал тебя: " + lastText, nil
}
