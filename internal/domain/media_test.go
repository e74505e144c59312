package domain

import "testing"

func TestCreateMediaRequestValidate(t *testing.T) {
	valid := CreateMediaRequest{SourceType: SourceTypeS3Presigned, Filename: "capa.jpg"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	invalid := CreateMediaRequest{}
	if err := invalid.Validate(); err == nil {
		t.Fatal("expected validation error for empty request")
	}

	missingObjectKey := CreateMediaRequest{SourceType: SourceTypeLocalFile}
	if err := missingObjectKey.Validate(); err == nil {
		t.Fatal("expected validation error for local_file object_key")
	}

	unsupportedSourceType := CreateMediaRequest{SourceType: "http_url"}
	if err := unsupportedSourceType.Validate(); err == nil {
		t.Fatal("expected validation error for unsupported source_type")
	}

	badHook := CreateMediaRequest{SourceType: SourceTypeS3Presigned, WebhookURL: "ftp://hooks.example.com"}
	if err := badHook.Validate(); err == nil {
		t.Fatal("expected validation error for non-http webhook_url")
	}
}

func TestImageSettingsValidate(t *testing.T) {
	s := DefaultImageSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	s.Quality = 0
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for quality=0")
	}

	s = DefaultImageSettings()
	s.WatermarkEnabled = true
	s.WatermarkSize = 0
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for watermark_size=0 with watermark enabled")
	}

	// watermark ranges are ignored while the watermark is off
	s.WatermarkEnabled = false
	if err := s.Validate(); err != nil {
		t.Fatalf("expected disabled watermark to skip checks, got %v", err)
	}
}

func TestImageSettingsHasWatermark(t *testing.T) {
	s := DefaultImageSettings()
	s.WatermarkEnabled = true
	if s.HasWatermark() {
		t.Fatal("expected no watermark without a logo url")
	}
	s.WatermarkLogoURL = "https://cdn.example.com/logo.png"
	if !s.HasWatermark() {
		t.Fatal("expected watermark with enabled flag and logo url")
	}
	s.WatermarkEnabled = false
	if s.HasWatermark() {
		t.Fatal("expected no watermark when disabled")
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"webp":  FormatWebP,
		"JPEG":  FormatJPEG,
		"jpg":   FormatJPEG,
		" png ": FormatPNG,
		"avif":  FormatWebP,
		"":      FormatWebP,
	}
	for in, want := range cases {
		if got := ParseFormat(in); got != want {
			t.Fatalf("ParseFormat(%q) = %q, want %q", in, got, want)
		}
	}
}
