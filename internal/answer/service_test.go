package answer

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/kotodama-ai/kotodama/internal/audiocache"
	"github.com/kotodama-ai/kotodama/internal/prompt"
	"github.com/kotodama-ai/kotodama/internal/retrieve"
	"github.com/kotodama-ai/kotodama/pkg/provider/llm"
	llmmock "github.com/kotodama-ai/kotodama/pkg/provider/llm/mock"
	ttsmock "github.com/kotodama-ai/kotodama/pkg/provider/tts/mock"
)

type stubRetriever struct {
	matches []retrieve.Match
	err     error
	queries []string
}

func (s *stubRetriever) Retrieve(_ context.Context, query string) ([]retrieve.Match, error) {
	s.queries = append(s.queries, query)
	return s.matches, s.err
}

func someMatches() []retrieve.Match {
	return []retrieve.Match{
		{
			ID:        "chunk_001",
			Score:     0.92,
			Content:   "黄金率とは行動の基準です。",
			Topic:     "黄金率",
			Timestamp: "00:01:00,000 - 00:02:00,000",
		},
		{
			ID:      "chunk_002",
			Score:   0.85,
			Content: strings.Repeat("あ", 250),
			Topic:   "感謝",
		},
	}
}

func TestAnswer_TextOnly(t *testing.T) {
	retriever := &stubRetriever{matches: someMatches()}
	provider := &llmmock.Provider{
		CompleteResult: &llm.CompletionResponse{Content: "黄金率とは行動の基準です。[1]"},
	}

	svc := NewService(retriever, provider)
	resp, err := svc.Answer(context.Background(), Request{Message: "黄金率とは?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if resp.Response != "黄金率とは行動の基準です。[1]" {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.Audio != "" {
		t.Error("audio should be empty without a TTS provider")
	}
	if resp.Metadata.RetrievedChunks != 2 {
		t.Errorf("retrievedChunks = %d, want 2", resp.Metadata.RetrievedChunks)
	}
	if resp.Metadata.AudioGenerated || resp.Metadata.AudioFromCache {
		t.Errorf("audio metadata = %+v, want false/false", resp.Metadata)
	}
	if !strings.HasPrefix(resp.ConversationID, "conv_") {
		t.Errorf("conversationId = %q, want generated conv_ prefix", resp.ConversationID)
	}

	// Sources follow match order and excerpt long content.
	if len(resp.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(resp.Sources))
	}
	if resp.Sources[0].Text != "黄金率とは行動の基準です。" {
		t.Errorf("short source should not be truncated: %q", resp.Sources[0].Text)
	}
	if resp.Sources[0].Timestamp != "00:01:00,000 - 00:02:00,000" {
		t.Errorf("timestamp = %q", resp.Sources[0].Timestamp)
	}
	if resp.Sources[0].RelevanceScore != 0.92 {
		t.Errorf("relevanceScore = %v", resp.Sources[0].RelevanceScore)
	}
	long := resp.Sources[1].Text
	if got := len([]rune(long)); got != sourceExcerptRunes+1 {
		t.Errorf("excerpt length = %d runes, want %d plus ellipsis", got, sourceExcerptRunes)
	}
	if !strings.HasSuffix(long, "…") {
		t.Error("long excerpt should end with an ellipsis")
	}

	// The completion request carried the grounding prompt.
	call := provider.CompleteCalls[0]
	if !strings.Contains(call.Req.SystemPrompt, "[1] 黄金率とは行動の基準です。") {
		t.Error("system prompt missing numbered source")
	}
	if last := call.Req.Messages[len(call.Req.Messages)-1]; last.Content != "黄金率とは?" {
		t.Errorf("last message = %+v", last)
	}
}

func TestAnswer_NoMatches(t *testing.T) {
	retriever := &stubRetriever{}
	provider := &llmmock.Provider{}

	svc := NewService(retriever, provider)
	resp, err := svc.Answer(context.Background(), Request{Message: "関係ない質問"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if resp.Response != prompt.NoInformationAnswer {
		t.Errorf("response = %q, want canned no-information answer", resp.Response)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("sources = %v, want empty", resp.Sources)
	}
	if len(provider.CompleteCalls) != 0 {
		t.Error("LLM should not be called with zero matches")
	}
}

func TestAnswer_KeepsCallerConversationID(t *testing.T) {
	retriever := &stubRetriever{matches: someMatches()}
	provider := &llmmock.Provider{
		CompleteResult: &llm.CompletionResponse{Content: "回答"},
	}

	svc := NewService(retriever, provider)
	resp, err := svc.Answer(context.Background(), Request{
		Message:        "質問",
		ConversationID: "conv_existing",
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if resp.ConversationID != "conv_existing" {
		t.Errorf("conversationId = %q, want conv_existing", resp.ConversationID)
	}
}

func TestAnswer_HistoryPassedThrough(t *testing.T) {
	retriever := &stubRetriever{matches: someMatches()}
	provider := &llmmock.Provider{
		CompleteResult: &llm.CompletionResponse{Content: "回答"},
	}

	svc := NewService(retriever, provider)
	_, err := svc.Answer(context.Background(), Request{
		Message: "続きは?",
		ConversationHistory: []HistoryEntry{
			{Role: "user", Content: "黄金率とは?"},
			{Role: "assistant", Content: "行動の基準です。"},
		},
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	msgs := provider.CompleteCalls[0].Req.Messages
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Role != llm.RoleUser || msgs[1].Role != llm.RoleAssistant {
		t.Errorf("history roles = %q, %q", msgs[0].Role, msgs[1].Role)
	}
}

func TestAnswer_EmptyCompletionIsError(t *testing.T) {
	retriever := &stubRetriever{matches: someMatches()}
	provider := &llmmock.Provider{
		CompleteResult: &llm.CompletionResponse{Content: ""},
	}

	svc := NewService(retriever, provider)
	if _, err := svc.Answer(context.Background(), Request{Message: "質問"}); err == nil {
		t.Fatal("expected error for empty completion content")
	}
}

func TestAnswer_RetrieveError(t *testing.T) {
	wantErr := errors.New("index down")
	retriever := &stubRetriever{err: wantErr}

	svc := NewService(retriever, &llmmock.Provider{})
	_, err := svc.Answer(context.Background(), Request{Message: "質問"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped %v", err, wantErr)
	}
}

func TestAnswer_AudioSynthesisAndCache(t *testing.T) {
	retriever := &stubRetriever{matches: someMatches()}
	provider := &llmmock.Provider{
		CompleteResult: &llm.CompletionResponse{Content: "回答です。"},
	}
	synth := &ttsmock.Provider{
		SynthesizeResult: []byte("mp3-bytes"),
		Configured:       true,
	}
	cache := audiocache.New()

	svc := NewService(retriever, provider, WithTTS(synth, cache))

	// First request synthesises and caches.
	resp, err := svc.Answer(context.Background(), Request{Message: "質問"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !resp.Metadata.AudioGenerated {
		t.Error("audioGenerated should be true")
	}
	if resp.Metadata.AudioFromCache {
		t.Error("first request should not hit the cache")
	}
	want := base64.StdEncoding.EncodeToString([]byte("mp3-bytes"))
	if resp.Audio != want {
		t.Errorf("audio = %q, want base64 of synthesised bytes", resp.Audio)
	}
	if len(synth.SynthesizeCalls) != 1 {
		t.Fatalf("synthesiser called %d times, want 1", len(synth.SynthesizeCalls))
	}
	if synth.SynthesizeCalls[0].Text != "回答です。" {
		t.Errorf("synthesised text = %q", synth.SynthesizeCalls[0].Text)
	}

	// Second identical answer comes from the cache.
	resp2, err := svc.Answer(context.Background(), Request{Message: "質問"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !resp2.Metadata.AudioFromCache {
		t.Error("second request should hit the cache")
	}
	if !resp2.Metadata.AudioGenerated {
		t.Error("cached audio still counts as generated")
	}
	if len(synth.SynthesizeCalls) != 1 {
		t.Errorf("synthesiser called %d times, want still 1", len(synth.SynthesizeCalls))
	}
	if resp2.Audio != want {
		t.Errorf("cached audio = %q", resp2.Audio)
	}
}

func TestAnswer_TTSFailureIsNotFatal(t *testing.T) {
	retriever := &stubRetriever{matches: someMatches()}
	provider := &llmmock.Provider{
		CompleteResult: &llm.CompletionResponse{Content: "回答です。"},
	}
	synth := &ttsmock.Provider{
		SynthesizeErr: errors.New("voice service down"),
		Configured:    true,
	}

	svc := NewService(retriever, provider, WithTTS(synth, audiocache.New()))
	resp, err := svc.Answer(context.Background(), Request{Message: "質問"})
	if err != nil {
		t.Fatalf("Answer should succeed without audio: %v", err)
	}
	if resp.Audio != "" {
		t.Error("audio should be empty on synthesis failure")
	}
	if resp.Metadata.AudioGenerated {
		t.Error("audioGenerated should be false on failure")
	}
	if resp.Response != "回答です。" {
		t.Errorf("response = %q", resp.Response)
	}
}

func TestAnswer_UnconfiguredTTSSkipped(t *testing.T) {
	retriever := &stubRetriever{matches: someMatches()}
	provider := &llmmock.Provider{
		CompleteResult: &llm.CompletionResponse{Content: "回答です。"},
	}
	synth := &ttsmock.Provider{Configured: false}

	svc := NewService(retriever, provider, WithTTS(synth, audiocache.New()))
	resp, err := svc.Answer(context.Background(), Request{Message: "質問"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if resp.Audio != "" || resp.Metadata.AudioGenerated {
		t.Error("unconfigured TTS should be skipped entirely")
	}
	if len(synth.SynthesizeCalls) != 0 {
		t.Error("unconfigured synthesiser should not be called")
	}
}
