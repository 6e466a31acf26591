package voice

import "context"

// Transcriber turns a Telegram voice note (OGG/Opus bytes) into text.
type Transcriber interface {
	Transcribe(ctx context.Context, ogg []byte) (string, error)
}

// Synthesizer renders reply text as audio suitable for a Telegram voice
// message. The returned format is the file extension of the payload
// ("mp3" or "wav").
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (audio []byte, format string, err error)
}
