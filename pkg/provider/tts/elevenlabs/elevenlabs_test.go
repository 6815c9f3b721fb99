package elevenlabs

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
	tests := []struct {
		name    string
		apiKey  string
		voiceID string
		want    bool
	}{
		{"both set", "xi-key", "voice-1", true},
		{"missing api key", "", "voice-1", false},
		{"missing voice", "xi-key", "", false},
		{"neither", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.apiKey, tt.voiceID)
			if got := p.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSynthesize_NotConfigured(t *testing.T) {
	p := New("", "")
	_, err := p.Synthesize(context.Background(), "こんにちは")
	if !errors.Is(err, tts.ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	p := New("xi-key", "voice-1")
	_, err := p.Synthesize(context.Background(), "   ")
	if !errors.Is(err, tts.ErrEmptyText) {
		t.Fatalf("err = %v, want ErrEmptyText", err)
	}
}

// TestSynthesize verifies the request path, headers, body shape, and that the
// raw audio bytes are returned verbatim.
func TestSynthesize(t *testing.T) {
	mp3 := []byte{0xFF, 0xFB, 0x90, 0x64, 0x00, 0x01, 0x02, 0x03}

	var gotReq synthesizeRequest
	var gotKey, gotAccept string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text-to-speech/voice-1" {
			t.Errorf("path = %q, want /v1/text-to-speech/voice-1", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		gotKey = r.Header.Get("xi-api-key")
		gotAccept = r.Header.Get("Accept")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(mp3)
	}))
	defer srv.Close()

	p := New("xi-key", "voice-1", WithBaseURL(srv.URL))
	audio, err := p.Synthesize(context.Background(), "黄金率とは行動の基準です。")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if string(audio) != string(mp3) {
		t.Errorf("audio bytes were not returned verbatim")
	}
	if gotKey != "xi-key" {
		t.Errorf("xi-api-key = %q", gotKey)
	}
	if gotAccept != "audio/mpeg" {
		t.Errorf("Accept = %q, want audio/mpeg", gotAccept)
	}
	if gotReq.Text != "黄金率とは行動の基準です。" {
		t.Errorf("text = %q", gotReq.Text)
	}
	if gotReq.ModelID != DefaultModel {
		t.Errorf("model_id = %q, want %q", gotReq.ModelID, DefaultModel)
	}
	if gotReq.VoiceSettings.Stability != tts.DefaultStability {
		t.Errorf("stability = %v, want %v", gotReq.VoiceSettings.Stability, tts.DefaultStability)
	}
	if gotReq.VoiceSettings.SimilarityBoost != tts.DefaultSimilarityBoost {
		t.Errorf("similarity_boost = %v, want %v", gotReq.VoiceSettings.SimilarityBoost, tts.DefaultSimilarityBoost)
	}
}

func TestSynthesize_CustomVoiceSettings(t *testing.T) {
	var gotReq synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	p := New("xi-key", "voice-1",
		WithBaseURL(srv.URL),
		WithModel("eleven_flash_v2_5"),
		WithVoiceSettings(tts.VoiceSettings{Stability: 0.3, SimilarityBoost: 0.9}))
	if _, err := p.Synthesize(context.Background(), "テスト"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if gotReq.ModelID != "eleven_flash_v2_5" {
		t.Errorf("model_id = %q", gotReq.ModelID)
	}
	if gotReq.VoiceSettings.Stability != 0.3 || gotReq.VoiceSettings.SimilarityBoost != 0.9 {
		t.Errorf("voice_settings = %+v", gotReq.VoiceSettings)
	}
}

func TestSynthesize_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid voice"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := New("xi-key", "voice-1", WithBaseURL(srv.URL))
	if _, err := p.Synthesize(context.Background(), "テスト"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestSynthesize_EmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New("xi-key", "voice-1", WithBaseURL(srv.URL))
	if _, err := p.Synthesize(context.Background(), "テスト"); err == nil {
		t.Fatal("expected error for empty audio body")
	}
}

func TestSynthesize_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := New("xi-key", "voice-1", WithBaseURL(srv.URL))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Synthesize(ctx, "テスト"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestVoiceID(t *testing.T) {
	p := New("xi-key", "voice-1")
	if got := p.VoiceID(); got != "voice-1" {
		t.Errorf("VoiceID() = %q, want voice-1", got)
	}
}
