package audio

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestConvertArgs(t *testing.T) {
	got := convertArgs("/tmp/voice.ogg", "/tmp/voice.wav")
	want := []string{
		"-y",
		"-i", "/tmp/voice.ogg",
		"-ar", "16000",
		"-ac", "1",
		"-acodec", "pcm_s16le",
		"/tmp/voice.wav",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("convertArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestNewConverterDefaultBinary(t *testing.T) {
	c := NewConverter("")
	if c.binary != "ffmpeg" {
		t.Errorf("default binary: got %q, want ffmpeg", c.binary)
	}
	c = NewConverter("/usr/local/bin/ffmpeg")
	if c.binary != "/usr/local/bin/ffmpeg" {
		t.Errorf("explicit binary: got %q", c.binary)
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ffmpeg version 6.1.1\nbuilt with gcc", "ffmpeg version 6.1.1"},
		{"single line", "single line"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := firstLine(tt.in); got != tt.want {
			t.Errorf("firstLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLastLine(t *testing.T) {
	stderr := strings.Join([]string{
		"ffmpeg version 6.1.1",
		"Input #0, ogg, from '/tmp/voice.ogg':",
		"/tmp/voice.ogg: Invalid data found when processing input",
		"",
	}, "\n")
	want := "/tmp/voice.ogg: Invalid data found when processing input"
	if got := lastLine(stderr); got != want {
		t.Errorf("lastLine = %q, want %q", got, want)
	}
	if got := lastLine("  \n \n"); got != "" {
		t.Errorf("lastLine on blank input = %q, want empty", got)
	}
}
