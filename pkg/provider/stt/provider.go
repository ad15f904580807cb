// Package stt defines the speech-to-text provider interface for voxcode.
//
// Providers transcribe a complete, already-recorded audio clip (a Telegram
// voice note after ffmpeg conversion) in a single request. Implementations
// live in subpackages: deepgram (hosted REST API) and whisper (local
// whisper.cpp server).
package stt

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyTranscript is returned when the provider succeeded but recognised
// no speech in the audio.
var ErrEmptyTranscript = errors.New("stt: empty transcript")

// Transcript is the result of transcribing one audio clip.
type Transcript struct {
	// Text is the full recognised text, already punctuated/formatted when the
	// provider supports it.
	Text string

	// Confidence is the provider's overall confidence in [0, 1], or 0 when
	// the provider does not report one.
	Confidence float64

	// AudioDuration is the length of the submitted audio as reported by the
	// provider. Zero when unknown.
	AudioDuration time.Duration

	// Model is the model identifier that produced the transcript, when the
	// provider reports it.
	Model string
}

// Provider transcribes a single prerecorded audio clip.
type Provider interface {
	// Name returns a short identifier for logs and metrics (e.g. "deepgram").
	Name() string

	// Transcribe submits audio (with the given MIME type, e.g. "audio/wav")
	// and returns the transcript. Implementations must respect ctx
	// cancellation and return ErrEmptyTranscript when no speech was
	// recognised.
	Transcribe(ctx context.Context, audio []byte, mimeType string) (Transcript, error)
}
