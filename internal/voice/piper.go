package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// PiperTTS synthesizes speech with a local piper CLI. Unlike the Google
// endpoint it works offline, but the voice model is monolingual so the
// lang argument is ignored.
type PiperTTS struct {
	cliPath   string
	modelPath string
}

func NewPiperTTS(cliPath, modelPath string) (*PiperTTS, error) {
	cliPath = strings.TrimSpace(cliPath)
	if cliPath == "" {
		cliPath = "piper"
	}
	resolved, err := exec.LookPath(cliPath)
	if err != nil {
		return nil, fmt.Errorf("piper: CLI not found at %q: %w", cliPath, err)
	}
	modelPath = strings.TrimSpace(modelPath)
	if modelPath == "" {
		return nil, fmt.Errorf("piper: model path is required")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("piper: model not readable: %w", err)
	}
	return &PiperTTS{cliPath: resolved, modelPath: modelPath}, nil
}

func (p *PiperTTS) Synthesize(ctx context.Context, text, _ string) ([]byte, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, "", fmt.Errorf("piper: empty text")
	}

	tmpDir, err := os.MkdirTemp("", "gembot-piper-*")
	if err != nil {
		return nil, "", err
	}
	defer os.RemoveAll(tmpDir)
	wavPath := filepath.Join(tmpDir, "reply.wav")

	cmd := exec.CommandContext(ctx, p.cliPath,
		"--model", p.modelPath,
		"--output_file", wavPath,
	)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, "", context.Canceled
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, "", fmt.Errorf("piper: synthesis failed: %s", detail)
	}

	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, "", fmt.Errorf("piper: read output: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", fmt.Errorf("piper: empty output")
	}
	return audio, "wav", nil
}
