package voice

import (
	"context"
	"fmt"

	"github.com/antoniostano/gembot/internal/audio"
)

// MockTranscriber provides a deterministic transcript when no STT backend
// is available.
type MockTranscriber struct{}

func NewMockTranscriber() *MockTranscriber { return &MockTranscriber{} }

func (t *MockTranscriber) Transcribe(ctx context.Context, ogg []byte) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	if len(ogg) == 0 {
		return "", fmt.Errorf("stt: empty audio")
	}
	return fmt.Sprintf("[голосовое сообщение, %d байт]", len(ogg)), nil
}

// MockSynthesizer emits a short silent WAV clip so the delivery path can
// be exercised without a TTS backend.
type MockSynthesizer struct{}

func NewMockSynthesizer() *MockSynthesizer { return &MockSynthesizer{} }

func (s *MockSynthesizer) Synthesize(ctx context.Context, text, _ string) ([]byte, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	default:
	}
	if text == "" {
		return nil, "", fmt.Errorf("tts: empty text")
	}
	// Half a second of silence at the STT sample rate.
	silence := make([]byte, sttSampleRate)
	wav, err := audio.EncodeWAVPCM16LE(silence, sttSampleRate)
	if err != nil {
		return nil, "", err
	}
	return wav, "wav", nil
}
