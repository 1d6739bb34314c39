package watch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

type Outcome int

const (
	Acknowledged Outcome = iota
	TimedOut
)

func (o Outcome) String() string {
	if o == Acknowledged {
		return "acknowledged"
	}
	return "timed out"
}

// Prompter posts the acknowledgment prompt and returns the id of the message that
// the requester has to react to.
type Prompter interface {
	Prompt(ctx context.Context, channelID, userID, text string) (messageID string, err error)
}

// Request identifies who must acknowledge and where the prompt goes.
type Request struct {
	UserID    string
	ChannelID string
	Kingdom   string
	Title     string
}

type pending struct {
	userID string
	ack    chan struct{}
	once   sync.Once
}

func (p *pending) acknowledge() {
	p.once.Do(func() { close(p.ack) })
}

// Watcher waits for a requester to react to a prompt, bounded by a countdown.
type Watcher struct {
	prompter Prompter
	emoji    string
	tick     time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*pending

	// onTick, when set, observes every countdown tick with the seconds left.
	onTick func(req Request, remaining int)
}

func NewWatcher(prompter Prompter, emoji string, logger *slog.Logger) *Watcher {
	return &Watcher{
		prompter: prompter,
		emoji:    emoji,
		tick:     time.Second,
		logger:   logger,
		pending:  make(map[string]*pending),
	}
}

// Watch posts the prompt and resolves exactly once: Acknowledged when the requester
// reacts with the acknowledgment emoji, TimedOut when the countdown runs out.
func (w *Watcher) Watch(ctx context.Context, req Request, timeout time.Duration) (Outcome, error) {
	text := fmt.Sprintf("<@%s> your **%s** title is ready. React with %s when done.", req.UserID, req.Title, w.emoji)
	messageID, err := w.prompter.Prompt(ctx, req.ChannelID, req.UserID, text)
	if err != nil {
		return TimedOut, fmt.Errorf("posting completion prompt: %w", err)
	}

	p := &pending{userID: req.UserID, ack: make(chan struct{})}
	w.mu.Lock()
	w.pending[messageID] = p
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.pending, messageID)
		w.mu.Unlock()
	}()

	remaining := int(math.Ceil(timeout.Seconds()))
	cd := NewCountdown(w.tick)
	defer cd.Stop()

	for {
		select {
		case <-p.ack:
			cd.Stop()
			w.logger.Info("Title acknowledged",
				slog.String("user", req.UserID),
				slog.String("kingdom", req.Kingdom),
				slog.Int("remaining", remaining),
			)
			return Acknowledged, nil
		case <-ctx.Done():
			cd.Stop()
			return TimedOut, ctx.Err()
		case <-cd.C():
			// An acknowledgment that raced with this tick wins.
			select {
			case <-p.ack:
				cd.Stop()
				return Acknowledged, nil
			default:
			}

			remaining--
			if w.onTick != nil {
				w.onTick(req, remaining)
			}
			if remaining <= 0 {
				cd.Stop()
				w.logger.Info("Timer ended, moving to the next request",
					slog.String("user", req.UserID),
					slog.String("kingdom", req.Kingdom),
				)
				return TimedOut, nil
			}
			if remaining%30 == 0 {
				w.logger.Info(fmt.Sprintf("User %s has %d seconds remaining for the title %q", req.UserID, remaining, req.Title),
					slog.String("kingdom", req.Kingdom))
			}
		}
	}
}

// HandleReaction routes a reaction event to the matching watch. It reports whether
// the reaction acknowledged a pending prompt.
func (w *Watcher) HandleReaction(messageID, userID, emoji string) bool {
	if emoji != w.emoji {
		return false
	}

	w.mu.Lock()
	p, found := w.pending[messageID]
	w.mu.Unlock()
	if !found || p.userID != userID {
		return false
	}

	p.acknowledge()
	return true
}

// Pending returns how many prompts are waiting for a reaction.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
