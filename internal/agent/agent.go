// Package agent orchestrates one conversation turn: acknowledge, load the
// session, route the query, plan a reply, persist, and deliver.
package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/planfit-ai/planfit/internal/chat"
	"github.com/planfit-ai/planfit/internal/classify"
	"github.com/planfit-ai/planfit/internal/session"
	"github.com/planfit-ai/planfit/internal/transport"
)

const welcomeMessage = `Welcome to the Fitness Goal Planner Agent!

I'll guide you through a complete fitness planning journey using a structured 5-phase approach:

**Phase 1** — Fitness Assessment (your starting point)
**Phase 2** — SMART Goal Setting (where you want to go)
**Phase 3** — Weekly Workout Split (your training plan)
**Phase 4** — Meal Planning (your nutrition framework)
**Phase 5** — Progress Tracking (staying on track)

You can:
- Start from Phase 1 for a complete plan
- Jump to any phase directly (e.g., "create a workout plan")
- Ask follow-up questions anytime
- Request adjustments to any part of your plan

Let's begin! Tell me about yourself — what's your current fitness level, and what are you hoping to achieve?`

const closingMessage = "Great session! Your fitness plan has been saved.\n" +
	"Come back anytime to adjust your plan or track progress.\n" +
	"Stay consistent and trust the process!"

const apologyMessage = "Sorry, I encountered a technical issue. Please try again."

// Planner produces the assistant reply for a classified query. The returned
// text is always presentable to the user.
type Planner interface {
	Plan(ctx context.Context, query string, c classify.Classification, history []session.Message, state *session.State) string
}

// Agent handles inbound chat envelopes for the fitness planner.
type Agent struct {
	store   session.Store
	planner Planner
	courier transport.Courier
	logger  *zap.Logger

	now         func() time.Time
	backoffStep time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds an Agent over its collaborators.
func New(store session.Store, planner Planner, courier transport.Courier, logger *zap.Logger) *Agent {
	return &Agent{
		store:       store,
		planner:     planner,
		courier:     courier,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		backoffStep: 2 * time.Second,
		locks:       make(map[string]*sync.Mutex),
	}
}

// HandleMessage processes one inbound message envelope. The transport may
// deliver concurrently; turns for the same (sender, session) run serially so
// history stays ordered. Any panic is contained to the turn and answered
// with an apology.
func (a *Agent) HandleMessage(ctx context.Context, sender, sessionID string, msg chat.Message) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("turn handling panicked",
				zap.String("sender", sender),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			a.sendBestEffort(ctx, sender, sessionID, chat.NewText(apologyMessage, false))
		}
	}()

	a.logger.Info("received message", zap.String("sender", sender))

	// Ack before any processing so the peer never waits on planning.
	if err := a.courier.SendAck(ctx, sender, sessionID, chat.NewAcknowledgement(msg.MsgID)); err != nil {
		a.logger.Warn("ack delivery failed", zap.String("sender", sender), zap.Error(err))
	}

	if sessionID == "" {
		sessionID = fmt.Sprintf("%s_%d", sender, a.now().Unix())
	}
	a.logger.Info("session resolved", zap.String("session_id", sessionID))

	lock := a.sessionLock(session.Key(sender, sessionID))
	lock.Lock()
	defer lock.Unlock()

	sess, err := a.store.Get(ctx, sender, sessionID)
	if err != nil {
		a.logger.Error("session load failed", zap.String("session_id", sessionID), zap.Error(err))
		a.sendBestEffort(ctx, sender, sessionID, chat.NewText(apologyMessage, false))
		return
	}

	text := msg.Text()
	if text == "" {
		switch {
		case msg.HasStartSession():
			a.handleSessionStart(ctx, sender, sessionID, sess)
		case msg.HasEndSession():
			a.handleSessionEnd(ctx, sender, sessionID, sess)
		}
		// A marker-free empty message is dropped silently.
		return
	}

	a.logger.Info("query received",
		zap.String("session_id", sessionID),
		zap.String("query", truncate(text, 100)))

	priorMessages := len(sess.History)
	sess.AddMessage(session.RoleUser, text, a.now())

	c := classify.Classify(text, priorMessages)
	a.logger.Info("query classified",
		zap.Stringer("category", c.Category),
		zap.String("phase", string(c.Phase)))

	reply := a.planner.Plan(ctx, text, c, sess.History[:priorMessages], &sess.State)
	a.logger.Info("reply planned", zap.String("reply", truncate(reply, 200)))

	sess.AddMessage(session.RoleAssistant, reply, a.now())
	// A failed save is fatal for the turn: delivering a reply the session
	// never recorded would desync history.
	if err := a.store.Put(ctx, sender, sessionID, sess); err != nil {
		a.logger.Error("session save failed", zap.String("session_id", sessionID), zap.Error(err))
		a.sendBestEffort(ctx, sender, sessionID, chat.NewText(apologyMessage, false))
		return
	}

	if err := a.sendWithRetry(ctx, sender, sessionID, chat.NewText(reply, false)); err != nil {
		a.logger.Error("reply delivery failed", zap.String("sender", sender), zap.Error(err))
		a.sendBestEffort(ctx, sender, sessionID, chat.NewText(apologyMessage, false))
	}
}

// HandleAcknowledgement records a peer's receipt of one of our messages.
func (a *Agent) HandleAcknowledgement(_ context.Context, sender string, ack chat.Acknowledgement) {
	a.logger.Info("received acknowledgement",
		zap.String("sender", sender),
		zap.String("acknowledged_msg_id", ack.AcknowledgedMsgID.String()))
}

func (a *Agent) handleSessionStart(ctx context.Context, sender, sessionID string, sess *session.Session) {
	a.logger.Info("session started", zap.String("sender", sender))
	sess.State.Greeted = true
	if err := a.store.Put(ctx, sender, sessionID, sess); err != nil {
		a.logger.Error("session save failed", zap.String("session_id", sessionID), zap.Error(err))
		a.sendBestEffort(ctx, sender, sessionID, chat.NewText(apologyMessage, false))
		return
	}
	a.sendBestEffort(ctx, sender, sessionID, chat.NewText(welcomeMessage, false))
}

func (a *Agent) handleSessionEnd(ctx context.Context, sender, sessionID string, sess *session.Session) {
	a.logger.Info("session ended", zap.String("sender", sender))
	if err := a.store.Put(ctx, sender, sessionID, sess); err != nil {
		a.logger.Error("session save failed", zap.String("session_id", sessionID), zap.Error(err))
		a.sendBestEffort(ctx, sender, sessionID, chat.NewText(apologyMessage, false))
		return
	}
	a.sendBestEffort(ctx, sender, sessionID, chat.NewText(closingMessage, true))
}

func (a *Agent) sendBestEffort(ctx context.Context, sender, sessionID string, msg chat.Message) {
	if err := a.courier.SendMessage(ctx, sender, sessionID, msg); err != nil {
		a.logger.Error("send failed", zap.String("sender", sender), zap.Error(err))
	}
}

// sessionLock returns the mutex serializing turns for one session key.
// Locks are never reclaimed; the per-session footprint is one mutex.
func (a *Agent) sessionLock(key string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[key] = lock
	}
	return lock
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
