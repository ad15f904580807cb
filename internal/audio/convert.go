// Package audio converts Telegram voice notes into the 16 kHz mono PCM WAV
// format the transcription providers expect, by shelling out to ffmpeg.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	// targetSampleRate and targetChannels match what both Deepgram and
	// whisper.cpp accept without resampling.
	targetSampleRate = 16000
	targetChannels   = 1

	defaultTimeout = 30 * time.Second
)

// Converter runs ffmpeg to transcode audio files.
type Converter struct {
	binary  string
	timeout time.Duration
}

// NewConverter returns a Converter that invokes the given ffmpeg binary.
// An empty binary defaults to "ffmpeg" resolved via PATH.
func NewConverter(binary string) *Converter {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Converter{binary: binary, timeout: defaultTimeout}
}

// convertArgs builds the ffmpeg argv for transcoding in to out.
func convertArgs(in, out string) []string {
	return []string{
		"-y",
		"-i", in,
		"-ar", fmt.Sprint(targetSampleRate),
		"-ac", fmt.Sprint(targetChannels),
		"-acodec", "pcm_s16le",
		out,
	}
}

// ToWAV transcodes the file at inPath into a 16 kHz mono s16le WAV at outPath,
// overwriting any existing file. The conversion is bounded by the converter
// timeout; on failure the error carries ffmpeg's stderr.
func (c *Converter) ToWAV(ctx context.Context, inPath, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, convertArgs(inPath, outPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("audio: ffmpeg timed out after %s", c.timeout)
		}
		return fmt.Errorf("audio: ffmpeg failed: %w: %s", err, lastLine(stderr.String()))
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("audio: converted file missing: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("audio: converted file is empty")
	}
	return nil
}

// ConvertVoiceNote transcodes a downloaded voice note into a WAV file placed
// next to it and returns the WAV bytes. Both files are removed before
// returning regardless of outcome.
func (c *Converter) ConvertVoiceNote(ctx context.Context, oggPath string) ([]byte, error) {
	wavPath := strings.TrimSuffix(oggPath, filepath.Ext(oggPath)) + ".wav"
	defer os.Remove(oggPath)
	defer os.Remove(wavPath)

	if err := c.ToWAV(ctx, oggPath, wavPath); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("audio: read converted file: %w", err)
	}
	return data, nil
}

// Version reports the installed ffmpeg version, for diagnostics and readiness
// probes.
func (c *Converter) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, c.binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("audio: ffmpeg not available: %w", err)
	}
	return firstLine(string(out)), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

// lastLine returns the last non-empty line of ffmpeg's stderr, which is where
// it reports the actual failure.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
