package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/guardbot/guardbot/internal/adapters/llm"
)

type stubLLM struct {
	answer string
	err    error
	delay  time.Duration

	gotMessages []llm.ChatCompletionMessage
}

func (s *stubLLM) ChatCompletion(ctx context.Context, messages []llm.ChatCompletionMessage) (llm.ChatCompletionResponse, error) {
	s.gotMessages = messages
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return llm.ChatCompletionResponse{}, ctx.Err()
		}
	}
	if s.err != nil {
		return llm.ChatCompletionResponse{}, s.err
	}
	return llm.ChatCompletionResponse{
		Choices: []llm.ChatCompletionChoice{
			{Message: llm.ChatCompletionMessage{Role: llm.RoleAssistant, Content: s.answer}},
		},
	}, nil
}

func TestOracleClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		answer string
		err    error
		want   Verdict
	}{
		{"spam verdict", "spam", nil, VerdictSpam},
		{"ok verdict", "ok", nil, VerdictOK},
		{"decorated answer", ` "Spam". `, nil, VerdictSpam},
		{"free-form answer", "this message looks fine to me", nil, VerdictUnknown},
		{"transport error", "", errors.New("upstream 500"), VerdictUnknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			oracle := NewOracle(&stubLLM{answer: tt.answer, err: tt.err}, time.Second)
			if got := oracle.Classify(context.Background(), "buy followers now"); got != tt.want {
				t.Errorf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOracleClassifyTimeout(t *testing.T) {
	t.Parallel()
	oracle := NewOracle(&stubLLM{answer: "spam", delay: time.Second}, 20*time.Millisecond)
	if got := oracle.Classify(context.Background(), "text"); got != VerdictUnknown {
		t.Errorf("Classify on timeout = %q, want %q", got, VerdictUnknown)
	}
}

func TestOracleSendsConstrainedPrompt(t *testing.T) {
	t.Parallel()
	stub := &stubLLM{answer: "ok"}
	oracle := NewOracle(stub, time.Second)
	oracle.Classify(context.Background(), "hello there")

	if len(stub.gotMessages) != 2 {
		t.Fatalf("got %d messages, want system + user", len(stub.gotMessages))
	}
	if stub.gotMessages[0].Role != llm.RoleSystem {
		t.Errorf("first message role = %q, want system", stub.gotMessages[0].Role)
	}
	if stub.gotMessages[1].Content != "hello there" {
		t.Errorf("user content = %q", stub.gotMessages[1].Content)
	}
}
