// Package answer composes retrieval, prompting, completion, and speech
// synthesis into the question-answering endpoint. The text answer is the
// product; audio is best-effort and its failures never fail a request.
package answer

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kotodama-ai/kotodama/internal/audiocache"
	"github.com/kotodama-ai/kotodama/internal/observe"
	"github.com/kotodama-ai/kotodama/internal/prompt"
	"github.com/kotodama-ai/kotodama/internal/resilience"
	"github.com/kotodama-ai/kotodama/internal/retrieve"
	"github.com/kotodama-ai/kotodama/pkg/provider/llm"
	"github.com/kotodama-ai/kotodama/pkg/provider/tts"
)

const (
	// MaxMessageChars bounds the incoming question length.
	MaxMessageChars = 1000

	// sourceExcerptRunes bounds the excerpt of each cited source.
	sourceExcerptRunes = 200

	llmTimeout = 30 * time.Second
	ttsTimeout = 30 * time.Second

	defaultTemperature = 0.8
	defaultMaxTokens   = 600
)

// HistoryEntry is one prior turn supplied by the caller. History is not
// persisted server-side; the front end sends it with each request.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the answer endpoint's input.
type Request struct {
	Message             string         `json:"message"`
	ConversationID      string         `json:"conversationId,omitempty"`
	ConversationHistory []HistoryEntry `json:"conversationHistory,omitempty"`
	Language            string         `json:"language,omitempty"`
}

// Source cites one retrieved passage that grounded the answer.
type Source struct {
	Text           string  `json:"text"`
	Timestamp      string  `json:"timestamp"`
	Topic          string  `json:"topic"`
	RelevanceScore float64 `json:"relevanceScore"`
}

// Metadata describes how the answer was produced.
type Metadata struct {
	RetrievedChunks  int   `json:"retrievedChunks"`
	ProcessingTimeMs int64 `json:"processingTimeMs"`
	AudioGenerated   bool  `json:"audioGenerated"`
	AudioFromCache   bool  `json:"audioFromCache"`
}

// Response is the answer endpoint's output. Audio is base64-encoded when
// present.
type Response struct {
	Response       string   `json:"response"`
	Audio          string   `json:"audio,omitempty"`
	Sources        []Source `json:"sources"`
	ConversationID string   `json:"conversationId"`
	Metadata       Metadata `json:"metadata"`
}

// Retriever finds relevant chunks for a question. Satisfied by
// retrieve.Retriever.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]retrieve.Match, error)
}

// Option is a functional option for Service.
type Option func(*Service)

// WithTTS enables audio answers using the given synthesiser and cache.
func WithTTS(provider tts.Provider, cache *audiocache.Cache) Option {
	return func(s *Service) {
		s.tts = provider
		s.cache = cache
	}
}

// WithTemperature overrides the completion temperature.
func WithTemperature(t float64) Option {
	return func(s *Service) { s.temperature = t }
}

// WithMaxTokens overrides the completion token cap.
func WithMaxTokens(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithMetrics records answer and cache counters to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithOutboundLimiter bounds concurrent LLM calls with the shared limiter.
func WithOutboundLimiter(l *resilience.OutboundLimiter) Option {
	return func(s *Service) { s.limiter = l }
}

// Service answers questions from the ingested knowledge base.
// It is safe for concurrent use.
type Service struct {
	retriever Retriever
	llm       llm.Provider
	tts       tts.Provider
	cache     *audiocache.Cache
	metrics   *observe.Metrics
	limiter   *resilience.OutboundLimiter

	// mu guards the tuning fields, which config hot reload may replace.
	mu          sync.RWMutex
	temperature float64
	maxTokens   int
}

// NewService creates a Service. TTS is optional; without it, answers are
// text-only.
func NewService(retriever Retriever, provider llm.Provider, opts ...Option) *Service {
	s := &Service{
		retriever:   retriever,
		llm:         provider,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Answer runs retrieval, prompting, completion, and best-effort synthesis
// for one question. Zero matches short-circuit to a canned no-information
// answer without an LLM call.
func (s *Service) Answer(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	matches, err := s.retriever.Retrieve(ctx, req.Message)
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}

	resp := &Response{
		Sources:        []Source{},
		ConversationID: conversationID(req.ConversationID),
	}

	if len(matches) == 0 {
		resp.Response = prompt.NoInformationAnswer
		resp.Metadata = Metadata{ProcessingTimeMs: time.Since(start).Milliseconds()}
		return resp, nil
	}

	system, messages := prompt.Build(matches, toLLMHistory(req.ConversationHistory), req.Message)

	s.mu.RLock()
	temperature, maxTokens := s.temperature, s.maxTokens
	s.mu.RUnlock()

	llmCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	completion, err := s.complete(llmCtx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     messages,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("answer: completion: %w", err)
	}
	if completion.Content == "" {
		return nil, fmt.Errorf("answer: provider returned empty content")
	}
	resp.Response = completion.Content

	audioGenerated, audioFromCache := s.attachAudio(ctx, resp)

	for _, m := range matches {
		resp.Sources = append(resp.Sources, Source{
			Text:           excerpt(m.Content),
			Timestamp:      m.Timestamp,
			Topic:          m.Topic,
			RelevanceScore: m.Score,
		})
	}

	resp.Metadata = Metadata{
		RetrievedChunks:  len(matches),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		AudioGenerated:   audioGenerated,
		AudioFromCache:   audioFromCache,
	}
	if s.metrics != nil {
		s.metrics.RecordAnswer(ctx, audioGenerated)
	}
	return resp, nil
}

// UpdateTuning replaces the completion temperature and token cap. Used by
// config hot reload; in-flight requests keep the values they started with.
func (s *Service) UpdateTuning(temperature float64, maxTokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperature = temperature
	if maxTokens > 0 {
		s.maxTokens = maxTokens
	}
}

// complete runs the LLM call through the outbound limiter when one is set.
func (s *Service) complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if s.limiter == nil {
		return s.llm.Complete(ctx, req)
	}
	var resp *llm.CompletionResponse
	err := s.limiter.Do(ctx, func() error {
		var innerErr error
		resp, innerErr = s.llm.Complete(ctx, req)
		return innerErr
	})
	return resp, err
}

// attachAudio fills resp.Audio from the cache or the synthesiser. Failures
// are logged and leave the response text-only.
func (s *Service) attachAudio(ctx context.Context, resp *Response) (generated, fromCache bool) {
	if s.tts == nil || !s.tts.IsConfigured() {
		return false, false
	}

	if s.cache != nil {
		audio, ok := s.cache.Get(resp.Response)
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(ctx, ok)
		}
		if ok {
			resp.Audio = base64.StdEncoding.EncodeToString(audio)
			return true, true
		}
	}

	ttsCtx, cancel := context.WithTimeout(ctx, ttsTimeout)
	audio, err := s.tts.Synthesize(ttsCtx, resp.Response)
	cancel()
	if err != nil {
		slog.Warn("speech synthesis failed; returning text-only answer", "error", err)
		return false, false
	}

	if s.cache != nil {
		s.cache.Put(resp.Response, audio)
	}
	resp.Audio = base64.StdEncoding.EncodeToString(audio)
	return true, false
}

// toLLMHistory converts caller history into completion messages.
func toLLMHistory(history []HistoryEntry) []llm.Message {
	if len(history) == 0 {
		return nil
	}
	out := make([]llm.Message, 0, len(history))
	for _, h := range history {
		out = append(out, llm.Message{Role: h.Role, Content: h.Content})
	}
	return out
}

// excerpt returns the first sourceExcerptRunes runes of text, with an
// ellipsis when truncated.
func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= sourceExcerptRunes {
		return text
	}
	return string(runes[:sourceExcerptRunes]) + "…"
}

// conversationID returns the caller's ID or generates a fresh one.
func conversationID(existing string) string {
	if existing != "" {
		return existing
	}
	return "conv_" + uuid.NewString()
}
