// Package asr implements the per-call ASR Stream Worker: a goroutine that
// owns one Google Speech StreamingRecognize bidi stream, feeds it caller
// audio from a bounded queue, and emits finalized/partial transcripts back
// to the dialogue machine.
package asr

import (
	"fmt"

	"cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/api/option"
)

const (
	defaultLanguageCode = "ja-JP"
	defaultModel        = "long"
)

// ClientOptions builds the Google client options (API key, quota project,
// service-account JSON) for the speech API from the gateway's static
// credential configuration.
func ClientOptions(apiKey, projectID, serviceAccountJSON string) []option.ClientOption {
	var opts []option.ClientOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if projectID != "" {
		opts = append(opts, option.WithQuotaProject(projectID))
	}
	if serviceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(serviceAccountJSON)))
	}
	return opts
}

// RegionalClientOptions appends a regional endpoint override when region is
// set and not "global".
func RegionalClientOptions(base []option.ClientOption, region string) []option.ClientOption {
	if region != "" && region != "global" {
		return append(base, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:443", region)))
	}
	return base
}

// Recognizer returns the fully-qualified recognizer resource name for a
// project and region.
func Recognizer(projectID, region string) string {
	if region != "" && region != "global" {
		return fmt.Sprintf("projects/%s/locations/%s/recognizers/_", projectID, region)
	}
	return fmt.Sprintf("projects/%s/locations/global/recognizers/_", projectID)
}

// StreamingRecognitionConfig builds the per-stream recognition config for
// 16kHz mono LINEAR16 caller audio.
func StreamingRecognitionConfig(language, model string) *speechpb.StreamingRecognitionConfig {
	if language == "" {
		language = defaultLanguageCode
	}
	if model == "" {
		model = defaultModel
	}
	return &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
				ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
					Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
					SampleRateHertz:   16000,
					AudioChannelCount: 1,
				},
			},
			Features: &speechpb.RecognitionFeatures{
				EnableAutomaticPunctuation: true,
				EnableWordConfidence:       true,
				ProfanityFilter:            true,
				EnableSpokenPunctuation:    true,
			},
			LanguageCodes: []string{language},
			Model:         model,
		},
		StreamingFeatures: &speechpb.StreamingRecognitionFeatures{
			EnableVoiceActivityEvents: false,
			InterimResults:            true,
		},
	}
}
