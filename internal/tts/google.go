package tts

import (
	"context"
	"errors"
	"fmt"
	"os"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/apresai/narrator/internal/audio"
	"github.com/apresai/narrator/internal/config"
	"github.com/apresai/narrator/internal/retry"
)

const googleDefaultVoice = "cs-CZ-Standard-B"

// GoogleSynthesizer implements Synthesizer using Google Cloud TTS.
type GoogleSynthesizer struct {
	client   *texttospeech.Client
	voice    string
	language string
	rate     float64
}

// NewGoogleSynthesizer authenticates with the configured service account
// file when it exists, otherwise with application default credentials.
func NewGoogleSynthesizer(ctx context.Context, s config.Speech) (*GoogleSynthesizer, error) {
	var opts []option.ClientOption
	if s.GoogleCredentials != "" {
		if _, err := os.Stat(s.GoogleCredentials); err == nil {
			opts = append(opts, option.WithCredentialsFile(s.GoogleCredentials))
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read Google credentials: %w", err)
		}
	}

	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create Google TTS client: %w", err)
	}

	voice := s.GoogleVoice
	if voice == "" {
		voice = googleDefaultVoice
	}
	return &GoogleSynthesizer{client: client, voice: voice, language: s.Language, rate: s.Rate}, nil
}

func (p *GoogleSynthesizer) Name() string { return "google" }

func (p *GoogleSynthesizer) Synthesize(ctx context.Context, text string) (audio.Unit, error) {
	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: p.language,
			Name:         p.voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			SpeakingRate:  p.rate,
		},
	}

	resp, err := p.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		switch status.Code(err) {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal:
			return audio.Unit{}, &retry.RetryableError{StatusCode: int(status.Code(err)), Body: err.Error()}
		}
		return audio.Unit{}, fmt.Errorf("Google TTS synthesize: %w", err)
	}

	return decodeMP3Bytes(resp.AudioContent)
}

func (p *GoogleSynthesizer) Close() error { return p.client.Close() }

func googleAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "cs-CZ-Standard-B", Name: "Standard B", Gender: "male", Description: "Czech, standard"},
		{ID: "cs-CZ-Wavenet-B", Name: "Wavenet B", Gender: "male", Description: "Czech, WaveNet"},
		{ID: "cs-CZ-Wavenet-A", Name: "Wavenet A", Gender: "female", Description: "Czech, WaveNet"},
		{ID: "en-US-Chirp3-HD-Charon", Name: "Charon", Gender: "male", Description: "Informative, clear male narrator"},
		{ID: "en-US-Chirp3-HD-Leda", Name: "Leda", Gender: "female", Description: "Youthful, bright female voice"},
		{ID: "en-US-Chirp3-HD-Fenrir", Name: "Fenrir", Gender: "male", Description: "Deep, resonant male voice"},
		{ID: "en-US-Chirp3-HD-Kore", Name: "Kore", Gender: "female", Description: "Firm, confident female voice"},
		{ID: "en-US-Chirp3-HD-Orus", Name: "Orus", Gender: "male", Description: "Warm, steady male narrator"},
	}
}
