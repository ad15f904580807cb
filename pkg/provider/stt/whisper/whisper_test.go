package whisper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxcodehq/voxcode/pkg/provider/stt"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty serverURL")
	}
	p, err := New("http://localhost:8080/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.serverURL != "http://localhost:8080" {
		t.Errorf("trailing slash should be trimmed, got %q", p.serverURL)
	}
	if p.language != "auto" {
		t.Errorf("default language: got %q, want auto", p.language)
	}
}

func TestTranscribe(t *testing.T) {
	var gotPath string
	var gotFields map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFields = map[string]string{}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		for k, v := range r.MultipartForm.Value {
			gotFields[k] = v[0]
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
		} else {
			data, _ := io.ReadAll(f)
			gotFields["__file"] = string(data)
			f.Close()
		}
		w.Write([]byte(`{"text": " Refactor the parser. \n"}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL, WithLanguage("en"), WithModel("base.en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Transcribe(context.Background(), []byte("wav-bytes"), "audio/wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "Refactor the parser." {
		t.Errorf("text: got %q", got.Text)
	}
	if gotPath != "/inference" {
		t.Errorf("path: got %q, want /inference", gotPath)
	}
	if gotFields["language"] != "en" {
		t.Errorf("language field: got %q", gotFields["language"])
	}
	if gotFields["model"] != "base.en" {
		t.Errorf("model field: got %q", gotFields["model"])
	}
	if gotFields["__file"] != "wav-bytes" {
		t.Errorf("file payload: got %q", gotFields["__file"])
	}
}

func TestTranscribeEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text": "   "}`))
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	_, err := p.Transcribe(context.Background(), []byte("wav"), "audio/wav")
	if !errors.Is(err, stt.ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
}

func TestTranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	if _, err := p.Transcribe(context.Background(), []byte("wav"), "audio/wav"); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}
