package coqui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kotodama-ai/kotodama/pkg/provider/tts"
)

func TestIsConfigured(t *testing.T) {
	if New("").IsConfigured() {
		t.Error("empty serverURL should not be configured")
	}
	if !New("http://localhost:5002").IsConfigured() {
		t.Error("non-empty serverURL should be configured")
	}
}

func TestSynthesize_NotConfigured(t *testing.T) {
	_, err := New("").Synthesize(context.Background(), "こんにちは")
	if !errors.Is(err, tts.ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	_, err := New("http://localhost:5002").Synthesize(context.Background(), "")
	if !errors.Is(err, tts.ErrEmptyText) {
		t.Fatalf("err = %v, want ErrEmptyText", err)
	}
}

// TestSynthesize_Standard verifies the query-parameter wire format of the
// standard server mode.
func TestSynthesize_Standard(t *testing.T) {
	wav := []byte("RIFF....WAVE....")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tts" {
			t.Errorf("path = %q, want /api/tts", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}
		q := r.URL.Query()
		if got := q.Get("text"); got != "黄金率とは何ですか" {
			t.Errorf("text = %q", got)
		}
		if got := q.Get("speaker_id"); got != "p225" {
			t.Errorf("speaker_id = %q", got)
		}
		if got := q.Get("language_id"); got != "ja" {
			t.Errorf("language_id = %q", got)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav)
	}))
	defer srv.Close()

	p := New(srv.URL, WithSpeaker("p225"))
	audio, err := p.Synthesize(context.Background(), "黄金率とは何ですか")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != string(wav) {
		t.Errorf("audio bytes were not returned verbatim")
	}
}

// TestSynthesize_XTTS verifies the JSON wire format of the XTTS v2 mode.
func TestSynthesize_XTTS(t *testing.T) {
	var gotReq xttsRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts_to_audio/" {
			t.Errorf("path = %q, want /tts_to_audio/", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte("wav-bytes"))
	}))
	defer srv.Close()

	p := New(srv.URL, WithAPIMode(APIModeXTTS), WithSpeaker("narrator"), WithLanguage("ja"))
	if _, err := p.Synthesize(context.Background(), "テスト"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if gotReq.Text != "テスト" {
		t.Errorf("text = %q", gotReq.Text)
	}
	if gotReq.SpeakerWav != "narrator" {
		t.Errorf("speaker_wav = %q", gotReq.SpeakerWav)
	}
	if gotReq.Language != "ja" {
		t.Errorf("language = %q", gotReq.Language)
	}
}

func TestSynthesize_XTTSRequiresSpeaker(t *testing.T) {
	p := New("http://localhost:8002", WithAPIMode(APIModeXTTS))
	if _, err := p.Synthesize(context.Background(), "テスト"); err == nil {
		t.Fatal("expected error when XTTS mode has no speaker")
	}
}

func TestSynthesize_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New(srv.URL)
	if _, err := p.Synthesize(context.Background(), "テスト"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestSynthesize_EmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(srv.URL)
	if _, err := p.Synthesize(context.Background(), "テスト"); err == nil {
		t.Fatal("expected error for empty audio body")
	}
}
