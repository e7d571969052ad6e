package asr

import "testing"

func TestRecognizerGlobal(t *testing.T) {
	got := Recognizer("proj-1", "")
	want := "projects/proj-1/locations/global/recognizers/_"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRecognizerRegional(t *testing.T) {
	got := Recognizer("proj-1", "asia-northeast1")
	want := "projects/proj-1/locations/asia-northeast1/recognizers/_"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStreamingRecognitionConfigDefaults(t *testing.T) {
	cfg := StreamingRecognitionConfig("", "")
	if got := cfg.GetConfig().GetLanguageCodes(); len(got) != 1 || got[0] != defaultLanguageCode {
		t.Errorf("expected default language code, got %v", got)
	}
	if cfg.GetConfig().GetModel() != defaultModel {
		t.Errorf("expected default model, got %q", cfg.GetConfig().GetModel())
	}
	if !cfg.GetStreamingFeatures().GetInterimResults() {
		t.Error("expected interim results enabled")
	}
}

func TestStreamingRecognitionConfigOverrides(t *testing.T) {
	cfg := StreamingRecognitionConfig("en-US", "short")
	if got := cfg.GetConfig().GetLanguageCodes(); len(got) != 1 || got[0] != "en-US" {
		t.Errorf("expected overridden language code, got %v", got)
	}
	if cfg.GetConfig().GetModel() != "short" {
		t.Errorf("expected overridden model, got %q", cfg.GetConfig().GetModel())
	}
}

func TestRegionalClientOptionsNoOverrideForGlobal(t *testing.T) {
	base := ClientOptions("key", "proj-1", "")
	got := RegionalClientOptions(base, "global")
	if len(got) != len(base) {
		t.Errorf("expected no additional option for global region")
	}
}

func TestRegionalClientOptionsAddsEndpoint(t *testing.T) {
	base := ClientOptions("key", "proj-1", "")
	got := RegionalClientOptions(base, "asia-northeast1")
	if len(got) != len(base)+1 {
		t.Errorf("expected one additional option for regional endpoint, got %d vs base %d", len(got), len(base))
	}
}
