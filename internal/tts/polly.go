package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/apresai/narrator/internal/audio"
	"github.com/apresai/narrator/internal/config"
	"github.com/apresai/narrator/internal/observability"
	"github.com/apresai/narrator/internal/segment"
)

const (
	pollyDefaultVoice = "Joanna"
	pollySampleRate   = 16000
	// pollyMaxChars is the per-request text limit of SynthesizeSpeech.
	pollyMaxChars = 3000
)

// PollySynthesizer implements Synthesizer using AWS Polly (neural engine).
type PollySynthesizer struct {
	voice  string
	client *polly.Client
}

func NewPollySynthesizer(ctx context.Context, s config.Speech) (*PollySynthesizer, error) {
	awsCfg, err := observability.LoadAWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config for Polly: %w", err)
	}
	voice := s.PollyVoice
	if voice == "" {
		voice = pollyDefaultVoice
	}
	return &PollySynthesizer{voice: voice, client: polly.NewFromConfig(awsCfg)}, nil
}

func (p *PollySynthesizer) Name() string { return "polly" }

// Synthesize splits chunks above Polly's request limit on sentence
// boundaries and joins the results.
func (p *PollySynthesizer) Synthesize(ctx context.Context, text string) (audio.Unit, error) {
	var out audio.Unit
	for _, part := range segment.Segment(text, pollyMaxChars, segment.ModeSentence) {
		u, err := p.synthesizePart(ctx, part.Text)
		if err != nil {
			return audio.Unit{}, err
		}
		if err := out.Append(u); err != nil {
			return audio.Unit{}, err
		}
	}
	return out, nil
}

func (p *PollySynthesizer) synthesizePart(ctx context.Context, text string) (audio.Unit, error) {
	input := &polly.SynthesizeSpeechInput{
		Engine:       types.EngineNeural,
		OutputFormat: types.OutputFormatPcm,
		SampleRate:   strPtr(fmt.Sprint(pollySampleRate)),
		Text:         &text,
		TextType:     types.TextTypeText,
		VoiceId:      types.VoiceId(p.voice),
	}

	resp, err := p.client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return audio.Unit{}, fmt.Errorf("Polly synthesize: %w", err)
	}
	defer resp.AudioStream.Close()

	data, err := io.ReadAll(resp.AudioStream)
	if err != nil {
		return audio.Unit{}, fmt.Errorf("Polly read audio: %w", err)
	}
	return audio.New(audio.Mono16(pollySampleRate), data)
}

func (p *PollySynthesizer) Close() error { return nil }

func strPtr(s string) *string { return &s }

func pollyAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "Joanna", Name: "Joanna", Gender: "female", Description: "en-US, Neural"},
		{ID: "Matthew", Name: "Matthew", Gender: "male", Description: "en-US, Neural"},
		{ID: "Ruth", Name: "Ruth", Gender: "female", Description: "en-US, Neural"},
		{ID: "Stephen", Name: "Stephen", Gender: "male", Description: "en-US, Neural"},
		{ID: "Amy", Name: "Amy", Gender: "female", Description: "en-GB, Neural"},
		{ID: "Brian", Name: "Brian", Gender: "male", Description: "en-GB, Neural"},
		{ID: "Vicki", Name: "Vicki", Gender: "female", Description: "de-DE, Neural"},
		{ID: "Ola", Name: "Ola", Gender: "female", Description: "pl-PL, Neural"},
	}
}
