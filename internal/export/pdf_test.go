package export

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Master Services Agreement", "Master-Services-Agreement"},
		{"invoice-INV-2026-0007", "invoice-INV-2026-0007"},
		{"report_final", "report_final"},
		{"weird/../name?.pdf", "weirdnamepdf"},
		{"***", "document"},
		{"", "document"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilenameCapsLength(t *testing.T) {
	long := strings.Repeat("a", 80)
	if got := sanitizeFilename(long); len(got) != 50 {
		t.Fatalf("expected a 50 character cap, got %d", len(got))
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain-text_1.2~", "plain-text_1.2~"},
		{"a b", "a%20b"},
		{"<html>", "%3Chtml%3E"},
		{"100%", "100%25"},
		{"café", "caf%C3%A9"},
	}
	for _, tt := range tests {
		if got := percentEncodeForDataURL(tt.in); got != tt.want {
			t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
