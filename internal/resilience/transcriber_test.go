package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/voxcodehq/voxcode/pkg/provider/stt"
)

// fakeProvider is a scriptable stt.Provider for chain tests.
type fakeProvider struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Transcribe(_ context.Context, _ []byte, _ string) (stt.Transcript, error) {
	f.calls++
	if f.err != nil {
		return stt.Transcript{}, f.err
	}
	return stt.Transcript{Text: f.text}, nil
}

func TestNewTranscriberRequiresProviders(t *testing.T) {
	if _, err := NewTranscriber(); err == nil {
		t.Fatal("expected error for empty provider list")
	}
}

func TestTranscriberPrimarySuccess(t *testing.T) {
	primary := &fakeProvider{name: "deepgram", text: "hello"}
	fallback := &fakeProvider{name: "whisper", text: "fallback"}
	tr, err := NewTranscriber(primary, fallback)
	if err != nil {
		t.Fatal(err)
	}

	got, err := tr.Transcribe(context.Background(), []byte("a"), "audio/wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "hello" {
		t.Errorf("text: got %q", got.Text)
	}
	if fallback.calls != 0 {
		t.Error("fallback should not be called when the primary succeeds")
	}
}

func TestTranscriberFailover(t *testing.T) {
	primary := &fakeProvider{name: "deepgram", err: errors.New("503")}
	fallback := &fakeProvider{name: "whisper", text: "rescued"}
	tr, _ := NewTranscriber(primary, fallback)

	got, err := tr.Transcribe(context.Background(), []byte("a"), "audio/wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "rescued" {
		t.Errorf("text: got %q", got.Text)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("calls: primary=%d fallback=%d", primary.calls, fallback.calls)
	}
}

func TestTranscriberEmptyTranscriptIsFinal(t *testing.T) {
	primary := &fakeProvider{name: "deepgram", err: stt.ErrEmptyTranscript}
	fallback := &fakeProvider{name: "whisper", text: "should not run"}
	tr, _ := NewTranscriber(primary, fallback)

	_, err := tr.Transcribe(context.Background(), []byte("a"), "audio/wav")
	if !errors.Is(err, stt.ErrEmptyTranscript) {
		t.Fatalf("got %v, want ErrEmptyTranscript", err)
	}
	if fallback.calls != 0 {
		t.Error("empty transcript must not trigger failover")
	}
}

func TestTranscriberAllFail(t *testing.T) {
	primary := &fakeProvider{name: "deepgram", err: errors.New("down")}
	fallback := &fakeProvider{name: "whisper", err: errors.New("also down")}
	tr, _ := NewTranscriber(primary, fallback)

	_, err := tr.Transcribe(context.Background(), []byte("a"), "audio/wav")
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Fatalf("got %v, want ErrAllProvidersFailed", err)
	}
}

func TestTranscriberSkipsOpenBreaker(t *testing.T) {
	primary := &fakeProvider{name: "deepgram", err: errors.New("down")}
	fallback := &fakeProvider{name: "whisper", text: "ok"}
	tr, _ := NewTranscriber(primary, fallback)

	// Trip the primary's breaker.
	for i := 0; i < defaultTripAfter; i++ {
		if _, err := tr.Transcribe(context.Background(), []byte("a"), "audio/wav"); err != nil {
			t.Fatalf("warm-up call %d: %v", i, err)
		}
	}
	callsBefore := primary.calls

	if _, err := tr.Transcribe(context.Background(), []byte("a"), "audio/wav"); err != nil {
		t.Fatalf("Transcribe with open primary breaker: %v", err)
	}
	if primary.calls != callsBefore {
		t.Error("primary should be skipped while its breaker is open")
	}
}
