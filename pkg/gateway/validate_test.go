package gateway

import (
	"strings"
	"testing"
)

func TestValidateResourceID(t *testing.T) {
	cases := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid", "cam-1_01.feed", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"too long", strings.Repeat("a", MaxIDLength+1), true},
		{"path separator rejected", "cam/1", true},
		{"shell metacharacter rejected", "cam;rm", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateResourceID(tc.id)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateResourceID(%q) error = %v, wantErr %v", tc.id, err, tc.wantErr)
			}
		})
	}
}

func TestValidateSourceURI(t *testing.T) {
	cases := []struct {
		name    string
		uri     string
		wantErr bool
	}{
		{"rtsp allowed", "rtsp://example.com/stream", false},
		{"https allowed", "https://example.com/stream.m3u8", false},
		{"empty", "", true},
		{"disallowed scheme", "ftp://example.com/stream", true},
		{"too long", "rtsp://" + strings.Repeat("a", MaxURILength), true},
		{"command injection char", "rtsp://example.com/$(whoami)", true},
		{"semicolon rejected", "rtsp://example.com;rm -rf /", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSourceURI(tc.uri)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateSourceURI(%q) error = %v, wantErr %v", tc.uri, err, tc.wantErr)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("h264", "codec"); err != nil {
		t.Fatalf("expected short name to pass, got %v", err)
	}
	if err := ValidateName(strings.Repeat("a", MaxNameLength+1), "codec"); err == nil {
		t.Fatal("expected an error for an over-length name")
	}
}

func TestValidatePluginID(t *testing.T) {
	if err := ValidatePluginID("motion-detector.v2"); err != nil {
		t.Fatalf("expected valid plugin id to pass, got %v", err)
	}
	if err := ValidatePluginID(""); err == nil {
		t.Fatal("expected an error for an empty plugin id")
	}
	if err := ValidatePluginID("plugin/with/slashes"); err == nil {
		t.Fatal("expected an error for a plugin id with path separators")
	}
}

func TestValidateRegexPattern(t *testing.T) {
	if _, err := ValidateRegexPattern("^cam-[0-9]+$"); err != nil {
		t.Fatalf("expected valid pattern to compile, got %v", err)
	}
	if _, err := ValidateRegexPattern("("); err == nil {
		t.Fatal("expected an error for an unbalanced pattern")
	}
	if _, err := ValidateRegexPattern(strings.Repeat("a", maxRegexLength+1)); err == nil {
		t.Fatal("expected an error for an over-length pattern")
	}
}
