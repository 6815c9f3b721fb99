package transcript

import (
	"testing"

	"github.com/kotodama-ai/kotodama/pkg/types"
)

func para(text string) types.Paragraph {
	return types.Paragraph{ParagraphID: 1, FullText: text}
}

func TestClean_WidthNormalization(t *testing.T) {
	c := NewCleaner()
	got := c.Clean([]types.Paragraph{para("ＡＢＣ１２３　ｘｙｚ")})
	if got[0].CleanedText != "ABC123 xyz" {
		t.Errorf("cleaned = %q", got[0].CleanedText)
	}
	if !got[0].Flags.Normalized {
		t.Error("Normalized flag not set")
	}
	if got[0].OriginalText != "ＡＢＣ１２３　ｘｙｚ" {
		t.Errorf("original not preserved: %q", got[0].OriginalText)
	}
}

func TestClean_DictionaryCorrectionRecorded(t *testing.T) {
	c := NewCleaner(WithErrorDictionary([]types.Correction{
		{Original: "高原率", Fixed: "黄金率"},
	}))
	got := c.Clean([]types.Paragraph{para("高原率とは何か。")})
	if got[0].CleanedText != "黄金率とは何か。" {
		t.Errorf("cleaned = %q", got[0].CleanedText)
	}
	if len(got[0].Corrections) != 1 || got[0].Corrections[0].Original != "高原率" {
		t.Errorf("corrections = %+v", got[0].Corrections)
	}
	if !got[0].Flags.ErrorsCorrected {
		t.Error("ErrorsCorrected flag not set")
	}
}

func TestClean_NonVerbalMarkersRemoved(t *testing.T) {
	c := NewCleaner()
	got := c.Clean([]types.Paragraph{para("ようこそ（拍手）本日は［音楽］始めます。")})
	if got[0].CleanedText != "ようこそ本日は始めます。" {
		t.Errorf("cleaned = %q", got[0].CleanedText)
	}
}

func TestClean_NonMarkerBracketsKept(t *testing.T) {
	c := NewCleaner()
	got := c.Clean([]types.Paragraph{para("著書（青木仁志）を読む。")})
	if got[0].CleanedText != "著書（青木仁志）を読む。" {
		t.Errorf("cleaned = %q", got[0].CleanedText)
	}
}

func TestClean_FillerRemovalOffByDefault(t *testing.T) {
	c := NewCleaner()
	got := c.Clean([]types.Paragraph{para("えーそれでですね。")})
	if got[0].Flags.FillersRemoved {
		t.Error("FillersRemoved should be false by default")
	}
	if got[0].CleanedText != "えーそれでですね。" {
		t.Errorf("cleaned = %q", got[0].CleanedText)
	}
}

func TestClean_FillerRemovalEnabled(t *testing.T) {
	c := NewCleaner(WithFillerRemoval(true))
	got := c.Clean([]types.Paragraph{para("えーっとそれでですね。")})
	if got[0].CleanedText != "それでですね。" {
		t.Errorf("cleaned = %q", got[0].CleanedText)
	}
}

func TestClean_PunctuationStandardized(t *testing.T) {
	c := NewCleaner()
	cases := []struct{ in, want string }{
		{"本当ですか！！！", "本当ですか！"},
		{"なぜ？？", "なぜ？"},
		{"そして、、続く。", "そして、続く。"},
		{"それは 。違う 、はず", "それは。違う、はず"},
	}
	for _, tc := range cases {
		got := c.Clean([]types.Paragraph{para(tc.in)})
		if got[0].CleanedText != tc.want {
			t.Errorf("Clean(%q) = %q, want %q", tc.in, got[0].CleanedText, tc.want)
		}
	}
}

func TestClean_WhitespaceCollapsed(t *testing.T) {
	c := NewCleaner()
	got := c.Clean([]types.Paragraph{para("  これは    テスト です  ")})
	if got[0].CleanedText != "これは テスト です" {
		t.Errorf("cleaned = %q", got[0].CleanedText)
	}
}

func TestFuzzyMatcher_KatakanaNearMiss(t *testing.T) {
	m := NewFuzzyMatcher([]string{"バイブル", "アチーブメント"})
	text, corr := m.Correct("私はバイベルを読みました")
	if text != "私はバイブルを読みました" {
		t.Errorf("text = %q", text)
	}
	if len(corr) != 1 || corr[0].Original != "バイベル" || corr[0].Fixed != "バイブル" {
		t.Errorf("corrections = %+v", corr)
	}
}

func TestFuzzyMatcher_ExactTermUntouched(t *testing.T) {
	m := NewFuzzyMatcher([]string{"バイブル"})
	text, corr := m.Correct("バイブルの話")
	if text != "バイブルの話" || len(corr) != 0 {
		t.Errorf("text = %q, corr = %+v", text, corr)
	}
}

func TestFuzzyMatcher_UnrelatedRunKept(t *testing.T) {
	m := NewFuzzyMatcher([]string{"バイブル"}, WithFuzzyThreshold(0.9))
	text, corr := m.Correct("コンピュータの話")
	if text != "コンピュータの話" || len(corr) != 0 {
		t.Errorf("text = %q, corr = %+v", text, corr)
	}
}
