package transcribe

import (
	"context"
	"fmt"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"medecho/internal/audio"
)

// GoogleClient transcribes through Google Cloud Speech-to-Text using the
// medical dictation model.
type GoogleClient struct {
	apiKey string

	once    sync.Once
	client  *speech.Client
	initErr error

	// recognize is swapped out in tests.
	recognize func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
}

// NewGoogle returns a client authenticated by API key. The underlying
// connection is established lazily on first use.
func NewGoogle(apiKey string) *GoogleClient {
	return &GoogleClient{apiKey: apiKey}
}

// Available reports whether an API key is configured.
func (g *GoogleClient) Available() bool { return g.apiKey != "" }

func (g *GoogleClient) init(ctx context.Context) error {
	g.once.Do(func() {
		if g.recognize != nil {
			return
		}
		c, err := speech.NewClient(ctx, option.WithAPIKey(g.apiKey))
		if err != nil {
			g.initErr = fmt.Errorf("creating speech client: %w", err)
			return
		}
		g.client = c
		g.recognize = func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			return c.Recognize(ctx, req)
		}
	})
	return g.initErr
}

// Transcribe sends audio through the Recognize API and returns the highest
// confidence alternative. Raw PCM is wrapped in a WAV container first.
func (g *GoogleClient) Transcribe(ctx context.Context, audioBytes []byte, language string) (Result, error) {
	if g.apiKey == "" {
		return Result{}, fmt.Errorf("medasr: no api key configured")
	}
	if err := g.init(ctx); err != nil {
		return Result{}, err
	}
	if language == "" {
		language = "en-US"
	}

	wav := audio.WrapPCM(audioBytes, audio.SampleRate)

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            audio.SampleRate,
			LanguageCode:               language,
			Model:                      "medical_dictation",
			EnableAutomaticPunctuation: true,
			UseEnhanced:                true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: wav},
		},
	}

	resp, err := g.recognize(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("medasr recognize: %w", err)
	}

	// Empty results are a valid outcome (pure silence), not an error.
	best := Result{Source: SourceMedASR}
	found := false
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		alt := r.GetAlternatives()[0]
		if !found || float64(alt.GetConfidence()) > best.Confidence {
			best.Text = strings.TrimSpace(alt.GetTranscript())
			best.Confidence = float64(alt.GetConfidence())
			found = true
		}
	}
	return best, nil
}

// Close releases the underlying connection if one was opened.
func (g *GoogleClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
