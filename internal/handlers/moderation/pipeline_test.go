package moderation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/guardbot/guardbot/internal/adapters/llm"
	"github.com/guardbot/guardbot/internal/db"
)

type stubSpamChecker struct {
	spammers map[int64]bool
	err      error
}

func (s *stubSpamChecker) IsSpammer(_ context.Context, userID int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.spammers[userID], nil
}

type stubHistory struct {
	counts map[int64]int
}

func (s *stubHistory) CountUserMessages(_ context.Context, _ int64, userID int64) (int, error) {
	return s.counts[userID], nil
}

type countingLLM struct {
	mu     sync.Mutex
	answer string
	calls  int
}

func (c *countingLLM) ChatCompletion(_ context.Context, _ []llm.ChatCompletionMessage) (llm.ChatCompletionResponse, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return llm.ChatCompletionResponse{
		Choices: []llm.ChatCompletionChoice{
			{Message: llm.ChatCompletionMessage{Role: llm.RoleAssistant, Content: c.answer}},
		},
	}, nil
}

func (c *countingLLM) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newCountingOracle(answer string) (*Oracle, *countingLLM) {
	c := &countingLLM{answer: answer}
	return NewOracle(c, time.Second), c
}

func testLexicons(t *testing.T) (banList, checkList *Lexicon) {
	t.Helper()
	return loadTestLexicon(t, "porn\nнаркотики\n"),
		loadTestLexicon(t, "заработок\ncrypto\n")
}

const (
	testProbation = 5
	testLinkMute  = 3 * 24 * time.Hour
	testPermaban  = 367 * 24 * time.Hour
)

func newTestPipeline(t *testing.T, spam *stubSpamChecker, history *stubHistory, oracle *Oracle, onClean func(context.Context, *Target)) *Pipeline {
	t.Helper()
	banList, checkList := testLexicons(t)
	return NewPipeline(
		NewReputationGate(spam, testPermaban),
		NewBanWordGate(banList, testPermaban),
		NewNewMemberGate(history, oracle, testProbation, testPermaban),
		NewCheckWordGate(checkList, oracle, 80, testPermaban, onClean),
		NewLinkGate(testLinkMute),
	)
}

func TestPipelineKnownSpammer(t *testing.T) {
	t.Parallel()
	oracle, llmStub := newCountingOracle("ok")
	pipeline := newTestPipeline(t,
		&stubSpamChecker{spammers: map[int64]bool{7: true}},
		&stubHistory{counts: map[int64]int{7: 100}},
		oracle, nil)

	outcome := pipeline.Run(context.Background(), &Target{ChatID: 1, UserID: 7, Text: "hello everyone"})
	if outcome == nil {
		t.Fatal("Run = nil, want reputation outcome")
	}
	if outcome.Reason != db.ReasonSpammerFromBase {
		t.Errorf("Reason = %q, want %q", outcome.Reason, db.ReasonSpammerFromBase)
	}
	if outcome.KeepMessage {
		t.Error("KeepMessage = true, the message must be deleted")
	}
	if outcome.Reason.MarksSpammer() {
		t.Error("MarksSpammer = true, the user is already flagged")
	}
	if llmStub.callCount() != 0 {
		t.Errorf("oracle called %d times, reputation gate must short-circuit", llmStub.callCount())
	}
}

func TestPipelineBanWordBeatsOracle(t *testing.T) {
	t.Parallel()
	// The oracle would clear this message, but a ban-word hit never
	// consults it.
	oracle, llmStub := newCountingOracle("ok")
	pipeline := newTestPipeline(t,
		&stubSpamChecker{},
		&stubHistory{counts: map[int64]int{7: 0}},
		oracle, nil)

	outcome := pipeline.Run(context.Background(), &Target{ChatID: 1, UserID: 7, Text: "дешёвые наркотики здесь"})
	if outcome == nil || outcome.Reason != db.ReasonBanWord {
		t.Fatalf("Run = %+v, want ban-word outcome", outcome)
	}
	if outcome.Source != "наркотики" {
		t.Errorf("Source = %q, want the matched term", outcome.Source)
	}
	if !outcome.Reason.MarksSpammer() {
		t.Error("MarksSpammer = false, ban words flag the sender")
	}
	if llmStub.callCount() != 0 {
		t.Errorf("oracle called %d times, want 0", llmStub.callCount())
	}
}

func TestPipelineNewMemberOracle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		count      int
		verdict    string
		wantReason db.Reason
		wantNil    bool
	}{
		{"new member spam", 0, "spam", db.ReasonNewMemberSpam, false},
		{"new member clean", 0, "ok", "", true},
		{"new member oracle unsure", 0, "maybe", "", true},
		{"established member not checked", testProbation, "spam", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			oracle, _ := newCountingOracle(tt.verdict)
			pipeline := newTestPipeline(t,
				&stubSpamChecker{},
				&stubHistory{counts: map[int64]int{7: tt.count}},
				oracle, nil)

			outcome := pipeline.Run(context.Background(), &Target{ChatID: 1, UserID: 7, Text: "обычный текст без триггеров"})
			if tt.wantNil {
				if outcome != nil {
					t.Fatalf("Run = %+v, want nil", outcome)
				}
				return
			}
			if outcome == nil || outcome.Reason != tt.wantReason {
				t.Fatalf("Run = %+v, want reason %q", outcome, tt.wantReason)
			}
			if outcome.MuteFor != testPermaban {
				t.Errorf("MuteFor = %v, want permaban duration", outcome.MuteFor)
			}
		})
	}
}

func TestPipelineCheckWordCourtesy(t *testing.T) {
	t.Parallel()
	oracle, llmStub := newCountingOracle("ok")
	var cleared *Target
	pipeline := newTestPipeline(t,
		&stubSpamChecker{},
		&stubHistory{counts: map[int64]int{7: 50}},
		oracle,
		func(_ context.Context, tgt *Target) { cleared = tgt })

	outcome := pipeline.Run(context.Background(), &Target{ChatID: 1, UserID: 7, Username: "alice", Text: "ищу заработок на лето"})
	if outcome != nil {
		t.Fatalf("Run = %+v, want nil on ok verdict", outcome)
	}
	if llmStub.callCount() != 1 {
		t.Errorf("oracle called %d times, want 1", llmStub.callCount())
	}
	if cleared == nil || cleared.Username != "alice" {
		t.Error("courtesy callback not invoked for the cleared message")
	}
}

func TestPipelineCheckWordSpam(t *testing.T) {
	t.Parallel()
	oracle, _ := newCountingOracle("spam")
	pipeline := newTestPipeline(t,
		&stubSpamChecker{},
		&stubHistory{counts: map[int64]int{7: 50}},
		oracle, nil)

	outcome := pipeline.Run(context.Background(), &Target{ChatID: 1, UserID: 7, Text: "предлагаю заработок для всех"})
	if outcome == nil || outcome.Reason != db.ReasonCheckWordSpam {
		t.Fatalf("Run = %+v, want check-word spam outcome", outcome)
	}
	if outcome.Source != "заработок" {
		t.Errorf("Source = %q, want matched term", outcome.Source)
	}
}

func TestPipelineLinkGate(t *testing.T) {
	t.Parallel()
	oracle, _ := newCountingOracle("ok")

	t.Run("new user posting link", func(t *testing.T) {
		t.Parallel()
		pipeline := newTestPipeline(t,
			&stubSpamChecker{},
			&stubHistory{counts: map[int64]int{7: 1}},
			oracle, nil)

		outcome := pipeline.Run(context.Background(), &Target{ChatID: 1, UserID: 7, Text: "visit https://spam.example now"})
		if outcome == nil || outcome.Reason != db.ReasonLink {
			t.Fatalf("Run = %+v, want link outcome", outcome)
		}
		if outcome.MuteFor != testLinkMute {
			t.Errorf("MuteFor = %v, want three days", outcome.MuteFor)
		}
		if outcome.Reason.MarksSpammer() {
			t.Error("MarksSpammer = true, link violations are not spam flags")
		}
		if outcome.Source != "https://spam.example" {
			t.Errorf("Source = %q, want the link", outcome.Source)
		}
	})

	t.Run("established user posting link", func(t *testing.T) {
		t.Parallel()
		// Message count does not matter, only admins may post links.
		pipeline := newTestPipeline(t,
			&stubSpamChecker{},
			&stubHistory{counts: map[int64]int{7: 100}},
			oracle, nil)

		outcome := pipeline.Run(context.Background(), &Target{ChatID: 1, UserID: 7, Text: "see https://example.com/docs"})
		if outcome == nil || outcome.Reason != db.ReasonLink {
			t.Fatalf("Run = %+v, want link outcome regardless of history", outcome)
		}
		if outcome.MuteFor != testLinkMute {
			t.Errorf("MuteFor = %v, want three days", outcome.MuteFor)
		}
	})

	t.Run("no link", func(t *testing.T) {
		t.Parallel()
		pipeline := newTestPipeline(t,
			&stubSpamChecker{},
			&stubHistory{counts: map[int64]int{7: 100}},
			oracle, nil)

		outcome := pipeline.Run(context.Background(), &Target{ChatID: 1, UserID: 7, Text: "обычное сообщение без ссылок"})
		if outcome != nil {
			t.Fatalf("Run = %+v, want nil", outcome)
		}
	})
}

func TestPipelineGateErrorSkipsToNext(t *testing.T) {
	t.Parallel()
	oracle, _ := newCountingOracle("ok")
	// Reputation store is down, the ban-word gate still fires.
	pipeline := newTestPipeline(t,
		&stubSpamChecker{err: errors.New("db locked")},
		&stubHistory{counts: map[int64]int{7: 100}},
		oracle, nil)

	outcome := pipeline.Run(context.Background(), &Target{ChatID: 1, UserID: 7, Text: "buy porn here"})
	if outcome == nil || outcome.Reason != db.ReasonBanWord {
		t.Fatalf("Run = %+v, want ban-word outcome despite gate error", outcome)
	}
}

func TestPipelineSerializesPerUser(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0
	gate := gateFunc(func(_ context.Context, _ *Target) (*Outcome, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil, nil
	})

	pipeline := NewPipeline(gate)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pipeline.Run(context.Background(), &Target{ChatID: 1, UserID: 7, Text: "x"})
		}()
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Errorf("max concurrent runs for one user = %d, want 1", maxInFlight)
	}
}

type gateFunc func(ctx context.Context, t *Target) (*Outcome, error)

func (f gateFunc) Name() string { return "test" }
func (f gateFunc) Evaluate(ctx context.Context, t *Target) (*Outcome, error) {
	return f(ctx, t)
}
