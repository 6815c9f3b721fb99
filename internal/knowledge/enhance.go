package knowledge

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/kotodama-ai/kotodama/pkg/types"
)

// enhanceDelay is the cooperative pause between consecutive LLM calls.
const enhanceDelay = 200 * time.Millisecond

// Completer is the slice of the LLM provider the enhancer needs: a single
// prompt in, a single completion out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Enhancer refines knowledge objects with an LLM. For each object it requests
// a structured JSON response and overwrites the summary, key takeaway,
// category, sentiment and themes. A failed call leaves the object untouched.
type Enhancer struct {
	llm   Completer
	delay time.Duration
}

// NewEnhancer constructs an Enhancer over the given completer.
func NewEnhancer(llm Completer) *Enhancer {
	return &Enhancer{llm: llm, delay: enhanceDelay}
}

// enhancement is the structured response requested from the model.
type enhancement struct {
	Summary     string   `json:"summary"`
	KeyTakeaway string   `json:"keyTakeaway"`
	Category    string   `json:"category"`
	Sentiment   string   `json:"sentiment"`
	Themes      []string `json:"themes"`
}

// Enhance refines the objects in place. Per-object failures are logged and
// swallowed so a flaky model never aborts an extraction run.
func (e *Enhancer) Enhance(ctx context.Context, objects []types.KnowledgeObject) {
	for i := range objects {
		if i > 0 {
			select {
			case <-time.After(e.delay):
			case <-ctx.Done():
				slog.Warn("knowledge enhancement cancelled", "remaining", len(objects)-i)
				return
			}
		}
		if err := e.enhanceOne(ctx, &objects[i]); err != nil {
			slog.Warn("knowledge enhancement failed; keeping original",
				"knowledgeId", objects[i].KnowledgeID, "err", err)
		}
	}
}

func (e *Enhancer) enhanceOne(ctx context.Context, obj *types.KnowledgeObject) error {
	raw, err := e.llm.Complete(ctx, buildEnhancePrompt(obj))
	if err != nil {
		return err
	}

	var enh enhancement
	if err := json.Unmarshal([]byte(extractJSON(raw)), &enh); err != nil {
		return err
	}

	if enh.Summary != "" {
		obj.Content.Main = enh.Summary
	}
	if enh.KeyTakeaway != "" {
		obj.Content.KeyTakeaway = enh.KeyTakeaway
	}
	if enh.Category != "" {
		obj.Metadata.Category = enh.Category
	}
	if enh.Sentiment != "" {
		obj.Metadata.Sentiment = enh.Sentiment
	}
	if len(enh.Themes) > 0 {
		obj.Metadata.Themes = enh.Themes
	}
	return nil
}

func buildEnhancePrompt(obj *types.KnowledgeObject) string {
	var b strings.Builder
	b.WriteString("以下のテキストを分析し、JSON形式で回答してください。\n\n")
	b.WriteString("テキスト:\n")
	b.WriteString(obj.Content.Context)
	b.WriteString("\n\n以下のキーを持つJSONのみを出力してください:\n")
	b.WriteString(`{"summary": "200文字以内の要約", "keyTakeaway": "最も重要な教訓", ` +
		`"category": "カテゴリ", "sentiment": "positive/neutral/negative", ` +
		`"themes": ["テーマ"]}`)
	return b.String()
}

// extractJSON strips markdown code fences and surrounding prose, returning the
// outermost JSON object in the completion.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
