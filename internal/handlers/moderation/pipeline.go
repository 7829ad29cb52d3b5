package moderation

import (
	"context"
	"sync"
	"time"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/guardbot/guardbot/internal/db"
	"github.com/guardbot/guardbot/internal/observability"
)

// Chat notice texts, also the i18n lookup keys.
const (
	NoticeBanWord = "@%s, your message contains banned words\n_You can no longer send messages\nIf you believe the block is unfair, contact the group administrator_"
	NoticeSpam    = "@%s, your message was classified as spam\n_You can no longer send messages\nIf you believe the block is unfair, contact the group administrator_"
	NoticeSpammer = "@%s, your message was classified as spam\n_You can no longer send messages_"
	NoticeClean   = "@%s, your message is fine"
	NoticeLink    = "@%s, new users are *not allowed to post links*\n_You have been temporarily restricted from sending messages_"
)

type (
	// Target is one message under moderation.
	Target struct {
		ChatID    int64
		MessageID int
		UserID    int64
		Username  string
		Text      string
	}

	// Outcome is a gate's punishment decision. A nil Outcome means the
	// gate has nothing against the message. Whether the user also lands
	// in the spammer set follows from the Reason, see Reason.MarksSpammer.
	Outcome struct {
		Reason      db.Reason
		Source      string
		MuteFor     time.Duration
		KeepMessage bool
		NoticeKey   string
	}

	// Gate is one ordered stage of the moderation pipeline.
	Gate interface {
		Name() string
		Evaluate(ctx context.Context, t *Target) (*Outcome, error)
	}
)

type spamChecker interface {
	IsSpammer(ctx context.Context, userID int64) (bool, error)
}

type historyCounter interface {
	CountUserMessages(ctx context.Context, chatID, userID int64) (int, error)
}

// Pipeline runs a message through its gates in order and returns the
// first verdict. Runs for the same user are serialized so a burst of
// messages cannot race past the reputation gate before the first
// punishment lands.
type Pipeline struct {
	gates []Gate

	mu        sync.Mutex
	userLocks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewPipeline(gates ...Gate) *Pipeline {
	return &Pipeline{
		gates:     gates,
		userLocks: make(map[int64]*userLock),
	}
}

func (p *Pipeline) lockUser(userID int64) {
	p.mu.Lock()
	l, ok := p.userLocks[userID]
	if !ok {
		l = &userLock{}
		p.userLocks[userID] = l
	}
	l.refs++
	p.mu.Unlock()
	l.mu.Lock()
}

func (p *Pipeline) unlockUser(userID int64) {
	p.mu.Lock()
	l := p.userLocks[userID]
	l.refs--
	if l.refs == 0 {
		delete(p.userLocks, userID)
	}
	p.mu.Unlock()
	l.mu.Unlock()
}

// Run evaluates the gates in order. Gate errors are logged and skipped,
// a broken gate must not block the rest of the pipeline.
func (p *Pipeline) Run(ctx context.Context, t *Target) *Outcome {
	p.lockUser(t.UserID)
	defer p.unlockUser(t.UserID)

	runID := uuid.NewRandom().String()
	ctx, span := otel.Tracer("moderation").Start(ctx, "pipeline.run")
	defer span.End()

	done := observability.StartPipelineTimer()

	for _, gate := range p.gates {
		select {
		case <-ctx.Done():
			done("canceled")
			return nil
		default:
		}

		outcome, err := gate.Evaluate(ctx, t)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"run_id": runID,
				"gate":   gate.Name(),
			}).Error("gate evaluation failed")
			continue
		}
		if outcome != nil {
			observability.Logger.Info("message flagged",
				zap.String("run_id", runID),
				zap.String("gate", gate.Name()),
				zap.String("reason", string(outcome.Reason)),
				zap.Int64("chat_id", t.ChatID),
				zap.Int64("user_id", t.UserID),
			)
			done(string(outcome.Reason))
			observability.RecordModeration(string(outcome.Reason))
			return outcome
		}
	}

	done("ok")
	observability.RecordModeration("ok")
	return nil
}

// reputationGate short-circuits for senders already flagged as spammers.
type reputationGate struct {
	store   spamChecker
	muteFor time.Duration
}

func NewReputationGate(store spamChecker, muteFor time.Duration) Gate {
	return &reputationGate{store: store, muteFor: muteFor}
}

func (g *reputationGate) Name() string { return "reputation" }

func (g *reputationGate) Evaluate(ctx context.Context, t *Target) (*Outcome, error) {
	isSpammer, err := g.store.IsSpammer(ctx, t.UserID)
	if err != nil {
		return nil, err
	}
	if !isSpammer {
		return nil, nil
	}
	return &Outcome{
		Reason:    db.ReasonSpammerFromBase,
		MuteFor:   g.muteFor,
		NoticeKey: NoticeSpammer,
	}, nil
}

// banWordGate matches the zero-tolerance list, exact tokens only.
type banWordGate struct {
	lexicon *Lexicon
	muteFor time.Duration
}

func NewBanWordGate(lexicon *Lexicon, muteFor time.Duration) Gate {
	return &banWordGate{lexicon: lexicon, muteFor: muteFor}
}

func (g *banWordGate) Name() string { return "ban_word" }

func (g *banWordGate) Evaluate(_ context.Context, t *Target) (*Outcome, error) {
	term, ok := g.lexicon.MatchExact(t.Text)
	if !ok {
		return nil, nil
	}
	return &Outcome{
		Reason:    db.ReasonBanWord,
		Source:    term,
		MuteFor:   g.muteFor,
		NoticeKey: NoticeBanWord,
	}, nil
}

// newMemberGate sends every message from a sender still inside the
// probation window to the oracle.
type newMemberGate struct {
	history   historyCounter
	oracle    *Oracle
	probation int
	muteFor   time.Duration
}

func NewNewMemberGate(history historyCounter, oracle *Oracle, probation int, muteFor time.Duration) Gate {
	return &newMemberGate{history: history, oracle: oracle, probation: probation, muteFor: muteFor}
}

func (g *newMemberGate) Name() string { return "new_member" }

func (g *newMemberGate) Evaluate(ctx context.Context, t *Target) (*Outcome, error) {
	count, err := g.history.CountUserMessages(ctx, t.ChatID, t.UserID)
	if err != nil {
		return nil, err
	}
	if count >= g.probation {
		return nil, nil
	}
	if g.oracle.Classify(ctx, t.Text) != VerdictSpam {
		return nil, nil
	}
	return &Outcome{
		Reason:    db.ReasonNewMemberSpam,
		MuteFor:   g.muteFor,
		NoticeKey: NoticeSpam,
	}, nil
}

// checkWordGate asks the oracle only when the fuzzy lexicon flags the
// text, and posts a courtesy note when the oracle clears it.
type checkWordGate struct {
	lexicon    *Lexicon
	oracle     *Oracle
	minPercent int
	muteFor    time.Duration
	onClean    func(ctx context.Context, t *Target)
}

func NewCheckWordGate(lexicon *Lexicon, oracle *Oracle, minPercent int, muteFor time.Duration, onClean func(ctx context.Context, t *Target)) Gate {
	return &checkWordGate{
		lexicon:    lexicon,
		oracle:     oracle,
		minPercent: minPercent,
		muteFor:    muteFor,
		onClean:    onClean,
	}
}

func (g *checkWordGate) Name() string { return "check_word" }

func (g *checkWordGate) Evaluate(ctx context.Context, t *Target) (*Outcome, error) {
	term, ok := g.lexicon.MatchFuzzy(t.Text, g.minPercent)
	if !ok {
		return nil, nil
	}
	switch g.oracle.Classify(ctx, t.Text) {
	case VerdictSpam:
		return &Outcome{
			Reason:    db.ReasonCheckWordSpam,
			Source:    term,
			MuteFor:   g.muteFor,
			NoticeKey: NoticeSpam,
		}, nil
	case VerdictOK:
		if g.onClean != nil {
			g.onClean(ctx, t)
		}
	}
	return nil, nil
}

// linkGate mutes any non-exempt sender who posts a link. Admins never
// reach the pipeline, so seniority does not buy link privileges.
type linkGate struct {
	muteFor time.Duration
}

func NewLinkGate(muteFor time.Duration) Gate {
	return &linkGate{muteFor: muteFor}
}

func (g *linkGate) Name() string { return "link" }

func (g *linkGate) Evaluate(_ context.Context, t *Target) (*Outcome, error) {
	link, ok := FindLink(t.Text)
	if !ok {
		return nil, nil
	}
	return &Outcome{
		Reason:    db.ReasonLink,
		Source:    link,
		MuteFor:   g.muteFor,
		NoticeKey: NoticeLink,
	}, nil
}
