package moderation

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/guardbot/guardbot/internal/adapters"
	"github.com/guardbot/guardbot/internal/adapters/llm"
	"github.com/guardbot/guardbot/internal/observability"
)

// Verdict is the oracle's answer about one message.
type Verdict string

const (
	VerdictSpam Verdict = "spam"
	VerdictOK   Verdict = "ok"
	// VerdictUnknown covers timeouts, transport errors and answers outside
	// the allowed vocabulary. Callers must treat it as "don't punish".
	VerdictUnknown Verdict = "unknown"
)

const oracleSystemPrompt = `You are a spam moderator for a public group chat. ` +
	`Classify the user's message. Reply with exactly one word: "spam" if the message ` +
	`is unsolicited advertising, a scam, a job-bait offer, crypto/casino promotion, ` +
	`or solicits private contact for money; "ok" otherwise. No other words.`

// Oracle asks the language model whether a message is spam. One verdict
// per call, constrained vocabulary, hard timeout.
type Oracle struct {
	mu      sync.RWMutex
	llm     adapters.LLM
	timeout time.Duration
}

func NewOracle(llmAPI adapters.LLM, timeout time.Duration) *Oracle {
	return &Oracle{
		llm:     llmAPI,
		timeout: timeout,
	}
}

// SetModel swaps the backing model when the backend supports it.
func (o *Oracle) SetModel(modelName string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if selector, ok := o.llm.(adapters.ModelSelector); ok {
		o.llm = selector.WithModel(modelName)
		log.WithField("model", modelName).Info("oracle model switched")
	}
}

// Classify returns the oracle's verdict for the message text. Any
// failure mode collapses to VerdictUnknown, never to a punishment.
func (o *Oracle) Classify(ctx context.Context, messageText string) Verdict {
	o.mu.RLock()
	llmAPI := o.llm
	timeout := o.timeout
	o.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := llmAPI.ChatCompletion(ctx, []llm.ChatCompletionMessage{
		{Role: llm.RoleSystem, Content: oracleSystemPrompt},
		{Role: llm.RoleUser, Content: messageText},
	})
	if err != nil {
		log.WithError(err).Warn("oracle request failed")
		observability.RecordOracleVerdict(string(VerdictUnknown))
		return VerdictUnknown
	}
	if len(resp.Choices) == 0 {
		observability.RecordOracleVerdict(string(VerdictUnknown))
		return VerdictUnknown
	}

	answer := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	answer = strings.Trim(answer, `."'!`)

	verdict := VerdictUnknown
	switch answer {
	case "spam":
		verdict = VerdictSpam
	case "ok":
		verdict = VerdictOK
	default:
		log.WithField("answer", answer).Debug("oracle answered outside vocabulary")
	}
	observability.RecordOracleVerdict(string(verdict))
	return verdict
}
