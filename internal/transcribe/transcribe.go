// Package transcribe converts encounter audio to text. The primary backend
// is Google Cloud Speech-to-Text with the medical dictation model; a local
// whisper.cpp process is the offline fallback. When both fail the service
// returns an empty result rather than an error so capture can still persist
// the audio for later.
package transcribe

import (
	"context"

	"medecho/internal/logging"
)

// Transcription sources, in fallback order.
const (
	SourceMedASR  = "medasr"
	SourceWhisper = "whisper"
	SourceNone    = "none"
)

// Result is one transcription outcome.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Transcriber converts WAV or raw PCM audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (Result, error)
	Available() bool
}

// Service runs the transcriber fallback chain.
type Service struct {
	primary  Transcriber
	fallback Transcriber
}

// NewService builds the chain. Either transcriber may be nil.
func NewService(primary, fallback Transcriber) *Service {
	return &Service{primary: primary, fallback: fallback}
}

// Transcribe tries the primary backend, then the fallback. A backend that
// errors or is unavailable hands over to the next. Total failure yields a
// zero Result with Source "none" and a nil error; the caller decides whether
// an empty transcript is acceptable.
func (s *Service) Transcribe(ctx context.Context, audio []byte, language string) Result {
	log := logging.WithComponent("transcribe")

	if s.primary != nil && s.primary.Available() {
		res, err := s.primary.Transcribe(ctx, audio, language)
		if err == nil {
			return res
		}
		log.Warn().Err(err).Msg("primary transcription failed, falling back to whisper")
	}

	if s.fallback != nil && s.fallback.Available() {
		res, err := s.fallback.Transcribe(ctx, audio, language)
		if err == nil {
			return res
		}
		log.Error().Err(err).Msg("whisper fallback failed")
	}

	return Result{Source: SourceNone}
}
