package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kotodama-ai/kotodama/pkg/types"
)

func cleanedParagraph(id int, text string, segmentIDs ...int) types.CleanedParagraph {
	return types.CleanedParagraph{
		Paragraph: types.Paragraph{
			ParagraphID: id,
			StartTime:   "00:00:01,000",
			EndTime:     "00:00:05,000",
			SegmentIDs:  segmentIDs,
		},
		CleanedText: text,
	}
}

func TestSegmentByKeywordOpensNewTopicOnKeyword(t *testing.T) {
	s := NewSegmenter(nil)
	paragraphs := []types.CleanedParagraph{
		cleanedParagraph(1, "黄金率について話します。", 1),
		cleanedParagraph(2, "それは大事な教えです。", 2),
		cleanedParagraph(3, "次に信用の話をします。", 3),
	}

	groups, err := s.Segment(context.Background(), paragraphs)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].label != "黄金率" {
		t.Errorf("group 0 label = %q, want 黄金率", groups[0].label)
	}
	if len(groups[0].paragraphs) != 2 {
		t.Errorf("group 0 has %d paragraphs, want 2", len(groups[0].paragraphs))
	}
	if groups[1].label != "信用" {
		t.Errorf("group 1 label = %q, want 信用", groups[1].label)
	}
}

func TestSegmentByKeywordNoKeywordSingleGroup(t *testing.T) {
	s := NewSegmenter(nil)
	paragraphs := []types.CleanedParagraph{
		cleanedParagraph(1, "これはただの話です。", 1),
		cleanedParagraph(2, "続きもただの話です。", 2),
	}

	groups, err := s.Segment(context.Background(), paragraphs)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if groups[0].label != "" {
		t.Errorf("label = %q, want empty", groups[0].label)
	}
}

// The character budget closes topics in keyword mode too, even when no
// keyword appears.
func TestSegmentByKeywordCharBudgetClosesTopic(t *testing.T) {
	long := strings.Repeat("あ", 15)
	s := NewSegmenter(nil, WithTopicCharBudget(20))
	paragraphs := []types.CleanedParagraph{
		cleanedParagraph(1, long, 1),
		cleanedParagraph(2, long, 2),
	}

	groups, err := s.Segment(context.Background(), paragraphs)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2 after budget close", len(groups))
	}
}

// stubEmbedder returns a fixed unit vector per known text and fails on
// anything else.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return nil, errors.New("unknown text")
}

func TestSegmentByEmbeddingLabelsAndCloses(t *testing.T) {
	// Two orthogonal axes: 黄金率 along x, 信用 along y.
	emb := &stubEmbedder{vectors: map[string][]float32{}}
	for _, kw := range TopicKeywords {
		emb.vectors[kw] = []float32{0, 0, 1}
	}
	emb.vectors["黄金率"] = []float32{1, 0, 0}
	emb.vectors["信用"] = []float32{0, 1, 0}
	emb.vectors["最初の段落です。"] = []float32{1, 0, 0}
	emb.vectors["二番目の段落です。"] = []float32{0.9, 0.1, 0}
	emb.vectors["三番目の段落です。"] = []float32{0, 1, 0}

	s := NewSegmenter(emb)
	paragraphs := []types.CleanedParagraph{
		cleanedParagraph(1, "最初の段落です。", 1),
		cleanedParagraph(2, "二番目の段落です。", 2),
		cleanedParagraph(3, "三番目の段落です。", 3),
	}

	groups, err := s.Segment(context.Background(), paragraphs)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].label != "黄金率" {
		t.Errorf("group 0 label = %q, want 黄金率", groups[0].label)
	}
	if groups[1].label != "信用" {
		t.Errorf("group 1 label = %q, want 信用", groups[1].label)
	}
}

func TestSegmentByEmbeddingFailureExtendsUnlabelled(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{}}
	for _, kw := range TopicKeywords {
		emb.vectors[kw] = []float32{0, 0, 1}
	}
	emb.vectors["黄金率"] = []float32{1, 0, 0}
	emb.vectors["ラベル付きの段落です。"] = []float32{1, 0, 0}
	// "埋め込みに失敗する段落です。" is deliberately absent.

	s := NewSegmenter(emb)
	paragraphs := []types.CleanedParagraph{
		cleanedParagraph(1, "ラベル付きの段落です。", 1),
		cleanedParagraph(2, "埋め込みに失敗する段落です。", 2),
	}

	groups, err := s.Segment(context.Background(), paragraphs)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if len(groups[0].paragraphs) != 2 {
		t.Errorf("group 0 has %d paragraphs, want 2", len(groups[0].paragraphs))
	}
}

func TestSegmentCharBudgetClosesTopic(t *testing.T) {
	long := strings.Repeat("あ", 15)
	paragraphs := []types.CleanedParagraph{
		cleanedParagraph(1, long, 1),
		cleanedParagraph(2, long, 2),
	}

	emb := &stubEmbedder{vectors: map[string][]float32{}}
	for _, kw := range TopicKeywords {
		emb.vectors[kw] = []float32{0, 0, 1}
	}
	emb.vectors[long] = []float32{1, 0, 0}

	se := NewSegmenter(emb, WithTopicCharBudget(20))
	groups, err := se.Segment(context.Background(), paragraphs)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2 after budget close", len(groups))
	}
}

func TestClassifyTypePriority(t *testing.T) {
	tests := []struct {
		text string
		want types.KnowledgeType
	}{
		{"毎日感謝することが大切です。", types.KnowledgeAdvice},
		{"黄金率は人生の法則です。", types.KnowledgePrinciple},
		{"20歳の時にブリタニカに入社しました。", types.KnowledgeBiographicalEvent},
		{"ある日、お客様にこう言われました。", types.KnowledgeAnecdote},
		{"今日は天気の話をします。", types.KnowledgeGeneral},
		// Advice markers outrank principle markers.
		{"黄金率を実践してはいけない理由はありません。", types.KnowledgeAdvice},
	}
	for _, tt := range tests {
		if got := classifyType(tt.text); got != tt.want {
			t.Errorf("classifyType(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestScoreImportance(t *testing.T) {
	people := types.KnowledgeEntities{People: []string{"青木仁志"}}
	highValue := types.KnowledgeEntities{Concepts: []string{"黄金率"}}
	longSummary := strings.Repeat("あ", 101)

	tests := []struct {
		name     string
		quotes   []string
		entities types.KnowledgeEntities
		summary  string
		want     types.Importance
	}{
		{"nothing", nil, types.KnowledgeEntities{}, "短い", types.ImportanceLow},
		{"people only", nil, people, "短い", types.ImportanceLow},
		{"quotes only", []string{"引用"}, types.KnowledgeEntities{}, "短い", types.ImportanceMedium},
		{"quotes and high-value concept", []string{"引用"}, highValue, "短い", types.ImportanceHigh},
		{"high-value and people and long summary", nil, types.KnowledgeEntities{
			People:   []string{"青木仁志"},
			Concepts: []string{"黄金率"},
		}, longSummary, types.ImportanceHigh},
	}
	for _, tt := range tests {
		if got := scoreImportance(tt.quotes, tt.entities, tt.summary); got != tt.want {
			t.Errorf("%s: scoreImportance = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestExtractEntities(t *testing.T) {
	text := "青木社長は20歳の時にブリタニカで営業を始め、月収100万を達成しました。" +
		"松下幸之助と黄金率の話です。青木社長は繰り返し登場します。"

	e := extractEntities(text)

	if len(e.People) != 2 {
		t.Fatalf("people = %v, want 2 entries", e.People)
	}
	if e.People[0] != "青木社長" || e.People[1] != "松下幸之助" {
		t.Errorf("people = %v", e.People)
	}
	if len(e.Organizations) != 1 || e.Organizations[0] != "ブリタニカ" {
		t.Errorf("organizations = %v", e.Organizations)
	}
	found := false
	for _, c := range e.Concepts {
		if c == "黄金率" {
			found = true
		}
	}
	if !found {
		t.Errorf("concepts = %v, want to contain 黄金率", e.Concepts)
	}
	if len(e.Ages) != 1 || e.Ages[0] != "20歳" {
		t.Errorf("ages = %v", e.Ages)
	}
	if len(e.Numbers) != 1 || e.Numbers[0] != "100万" {
		t.Errorf("numbers = %v", e.Numbers)
	}
}

func TestExtractQuotes(t *testing.T) {
	text := "彼は「人にしてもらいたいことを人にしなさい」と言いました。" +
		"毎日続けることが大切です。「人にしてもらいたいことを人にしなさい」は繰り返されました。"

	quotes := extractQuotes(text)

	if len(quotes) != 2 {
		t.Fatalf("got %d quotes, want 2: %v", len(quotes), quotes)
	}
	if quotes[0] != "人にしてもらいたいことを人にしなさい" {
		t.Errorf("quotes[0] = %q", quotes[0])
	}
	if !strings.Contains(quotes[1], "ことが大切") {
		t.Errorf("quotes[1] = %q, want a teaching-pattern sentence", quotes[1])
	}
}

func TestExtractorBuildsObjects(t *testing.T) {
	x := NewExtractor(NewSegmenter(nil))
	paragraphs := []types.CleanedParagraph{
		cleanedParagraph(1, "黄金率とは「人にしてもらいたいことを人にしなさい」という教えです。", 1, 2),
		cleanedParagraph(2, "これを実践することが大切です。", 3),
		cleanedParagraph(3, "次に信用の話をします。信用は一朝一夕には築けません。", 4),
	}

	objects, err := x.Extract(context.Background(), paragraphs)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("got %d objects, want 2", len(objects))
	}

	first := objects[0]
	if first.KnowledgeID != "k001" {
		t.Errorf("knowledgeId = %q, want k001", first.KnowledgeID)
	}
	if first.Topic != "黄金率" {
		t.Errorf("topic = %q, want 黄金率", first.Topic)
	}
	if first.Type != types.KnowledgeAdvice {
		t.Errorf("type = %q, want advice", first.Type)
	}
	if len(first.Content.Quotes) == 0 {
		t.Fatal("want at least one quote")
	}
	if first.Content.KeyTakeaway != first.Content.Quotes[0] {
		t.Errorf("keyTakeaway = %q, want first quote %q",
			first.Content.KeyTakeaway, first.Content.Quotes[0])
	}
	if first.Metadata.Importance != types.ImportanceHigh {
		t.Errorf("importance = %q, want high", first.Metadata.Importance)
	}
	if got := first.Metadata.SegmentIDs; len(got) != 3 {
		t.Errorf("segmentIds = %v, want [1 2 3]", got)
	}
	if first.Timestamp.Start != "00:00:01,000" || first.Timestamp.End != "00:00:05,000" {
		t.Errorf("timestamp = %+v", first.Timestamp)
	}

	if objects[1].KnowledgeID != "k002" {
		t.Errorf("second knowledgeId = %q, want k002", objects[1].KnowledgeID)
	}
	if objects[1].Topic != "信用" {
		t.Errorf("second topic = %q, want 信用", objects[1].Topic)
	}
}

func TestExtractorMainSummaryTruncation(t *testing.T) {
	x := NewExtractor(NewSegmenter(nil))
	long := strings.Repeat("あ", 250) + "。"
	objects, err := x.Extract(context.Background(), []types.CleanedParagraph{
		cleanedParagraph(1, long, 1),
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	main := objects[0].Content.Main
	runes := []rune(main)
	if len(runes) != 201 {
		t.Errorf("main has %d runes, want 200 + ellipsis", len(runes))
	}
	if runes[len(runes)-1] != '…' {
		t.Errorf("main does not end with ellipsis: %q", main[len(main)-3:])
	}
	if objects[0].Content.Context != long {
		t.Error("context must keep the full topic text")
	}
}

func TestExtractorIsDeterministic(t *testing.T) {
	x := NewExtractor(NewSegmenter(nil))
	paragraphs := []types.CleanedParagraph{
		cleanedParagraph(1, "黄金率について。", 1),
		cleanedParagraph(2, "信用について。", 2),
	}

	a, err := x.Extract(context.Background(), paragraphs)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	b, err := x.Extract(context.Background(), paragraphs)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("runs differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].KnowledgeID != b[i].KnowledgeID || a[i].Topic != b[i].Topic {
			t.Errorf("object %d differs between runs", i)
		}
	}
}

// stubCompleter returns a canned completion or an error.
type stubCompleter struct {
	response string
	err      error
	calls    int
}

func (s *stubCompleter) Complete(context.Context, string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestEnhancerOverwritesFields(t *testing.T) {
	llm := &stubCompleter{response: "```json\n" +
		`{"summary": "改善された要約", "keyTakeaway": "改善された教訓", ` +
		`"category": "成功哲学", "sentiment": "positive", "themes": ["成功", "黄金率"]}` +
		"\n```"}
	e := NewEnhancer(llm)
	e.delay = 0

	objects := []types.KnowledgeObject{{
		KnowledgeID: "k001",
		Content:     types.KnowledgeContent{Main: "元の要約", KeyTakeaway: "元の教訓"},
		Metadata:    types.KnowledgeMetadata{Category: "黄金率", Sentiment: "neutral"},
	}}
	e.Enhance(context.Background(), objects)

	if objects[0].Content.Main != "改善された要約" {
		t.Errorf("main = %q", objects[0].Content.Main)
	}
	if objects[0].Content.KeyTakeaway != "改善された教訓" {
		t.Errorf("keyTakeaway = %q", objects[0].Content.KeyTakeaway)
	}
	if objects[0].Metadata.Sentiment != "positive" {
		t.Errorf("sentiment = %q", objects[0].Metadata.Sentiment)
	}
	if len(objects[0].Metadata.Themes) != 2 {
		t.Errorf("themes = %v", objects[0].Metadata.Themes)
	}
}

func TestEnhancerSwallowsFailures(t *testing.T) {
	llm := &stubCompleter{err: errors.New("model unavailable")}
	e := NewEnhancer(llm)
	e.delay = 0

	objects := []types.KnowledgeObject{{
		KnowledgeID: "k001",
		Content:     types.KnowledgeContent{Main: "元の要約"},
	}, {
		KnowledgeID: "k002",
		Content:     types.KnowledgeContent{Main: "二つ目の要約"},
	}}
	e.Enhance(context.Background(), objects)

	if llm.calls != 2 {
		t.Errorf("calls = %d, want 2 (failures must not abort the run)", llm.calls)
	}
	if objects[0].Content.Main != "元の要約" || objects[1].Content.Main != "二つ目の要約" {
		t.Error("failed enhancement must keep originals")
	}
}
