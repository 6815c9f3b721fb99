// Package prompt renders the message list for the answering LLM. The system
// prompt grounds the model strictly in the retrieved passages; the rest of
// the list is the caller-supplied history followed by the current question.
package prompt

import (
	"fmt"
	"strings"

	"github.com/kotodama-ai/kotodama/internal/retrieve"
	"github.com/kotodama-ai/kotodama/pkg/provider/llm"
)

// MaxAnswerChars is the answer length target stated in the system prompt.
// It is an instruction to the model, not a server-side truncation.
const MaxAnswerChars = 150

// NoInformationAnswer is what the model is told to answer, and what the
// service returns itself, when the knowledge base has nothing relevant.
const NoInformationAnswer = "申し訳ございませんが、その質問に関する情報がありません。"

// systemHeader states the grounding rules. Passages are appended below it as
// numbered sources.
const systemHeader = `あなたは講演者の言葉と教えに基づいて質問に答えるアシスタントです。

以下のルールを必ず守ってください。
- 提供された知識ベースの内容のみに基づいて回答する
- 引用する場合は出典番号を示す（例：[1]）
- 知識ベースに該当する情報がない場合は「情報がありません」と答える
- 回答は150文字以内、2〜3文で簡潔にまとめる
- 講演者の語り口と価値観を尊重する

知識ベース:`

// BuildSystemPrompt renders the grounding rules followed by the retrieved
// passages as numbered sources, each annotated with its source timestamp.
func BuildSystemPrompt(matches []retrieve.Match) string {
	var b strings.Builder
	b.WriteString(systemHeader)

	for i, m := range matches {
		fmt.Fprintf(&b, "\n\n[%d] %s", i+1, m.Content)
		if m.Timestamp != "" {
			fmt.Fprintf(&b, "\n(時間: %s)", m.Timestamp)
		}
	}
	return b.String()
}

// BuildMessages returns the conversation for the completion call: the
// supplied history followed by the current user message. History entries
// whose content equals the current message are dropped, since the front end
// may echo the in-flight question back in its history.
func BuildMessages(history []llm.Message, message string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	for _, h := range history {
		if strings.TrimSpace(h.Content) == strings.TrimSpace(message) {
			continue
		}
		messages = append(messages, h)
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: message})
}

// Build assembles the full completion request inputs for a question.
func Build(matches []retrieve.Match, history []llm.Message, message string) (system string, messages []llm.Message) {
	return BuildSystemPrompt(matches), BuildMessages(history, message)
}
