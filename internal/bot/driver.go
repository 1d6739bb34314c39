package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rokbot/titlebot/internal/action"
	"github.com/rokbot/titlebot/internal/adb"
	"github.com/rokbot/titlebot/internal/config"
	"github.com/rokbot/titlebot/internal/event"
	"github.com/rokbot/titlebot/internal/health"
	"github.com/rokbot/titlebot/internal/queue"
	"github.com/rokbot/titlebot/internal/store"
	"github.com/rokbot/titlebot/internal/title"
	"github.com/rokbot/titlebot/internal/vision"
	"github.com/rokbot/titlebot/internal/watch"
)

var (
	ErrUnknownKingdom = errors.New("kingdom is not configured")
	ErrTitleLocked    = errors.New("title is locked")
	ErrAlreadyQueued  = errors.New("request already queued")
)

// Notifier posts plain text to a chat channel.
type Notifier interface {
	Notify(ctx context.Context, channelID, text string) error
}

// Resolver locates a checkpoint on the current device screen.
type Resolver interface {
	Resolve(ctx context.Context, d *adb.Device) (vision.Outcome, error)
}

// Completion waits for the requester to confirm they are done with the title.
type Completion interface {
	Watch(ctx context.Context, req watch.Request, timeout time.Duration) (watch.Outcome, error)
}

// Store is the subset of the persistence layer the driver reads and writes.
type Store interface {
	IsLocked(ctx context.Context, t title.Title, kingdom string) (bool, error)
	CustomDuration(ctx context.Context, t title.Title, kingdom string) (time.Duration, bool, error)
	LogRequest(ctx context.Context, e store.LogEntry) error
}

// Publisher receives lifecycle events. *event.Listener satisfies it.
type Publisher interface {
	Send(e event.Event)
}

// Ticket is what a submitter gets back once a request is accepted.
type Ticket struct {
	Request  queue.Request
	Position int
	Queued   bool
}

// Notice is the reply for the requester: their queue position when they have to
// wait, otherwise that processing started.
func (t Ticket) Notice() string {
	if t.Queued {
		return fmt.Sprintf("<@%s> your **%s** request has been added to the queue for kingdom %s. Position: %d", t.Request.UserID, t.Request.Title, t.Request.Kingdom, t.Position)
	}
	return fmt.Sprintf("<@%s> processing your **%s** request in kingdom %s...", t.Request.UserID, t.Request.Title, t.Request.Kingdom)
}

// Driver moves every kingdom's requests through navigation, checkpoint resolution,
// the title action and the completion wait, one request per kingdom at a time.
type Driver struct {
	Registry   *queue.Registry
	Sequencer  *action.Sequencer
	TitleCheck Resolver
	ConnCheck  Resolver
	HomeCheck  Resolver
	Completion Completion
	Notifier   Notifier
	Store      Store
	Events     Publisher
	Monitor    *health.ConnectionMonitor
	Cfg        *config.TitlebotCfg
	Kingdoms   map[string]*config.KingdomCfg
	ADBPath    string
	// KingdomLoggers optionally gives each kingdom its own log output.
	KingdomLoggers map[string]*slog.Logger

	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDriver(logger *slog.Logger) *Driver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{
		Registry: queue.NewRegistry(),
		ADBPath:  "adb",
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit validates req, appends it to its kingdom's queue and starts processing
// when the kingdom was idle.
func (d *Driver) Submit(ctx context.Context, req queue.Request) (Ticket, error) {
	if !req.Title.Valid() {
		return Ticket{}, fmt.Errorf("%w: %q", title.ErrUnknownTitle, req.Title)
	}
	if _, found := d.Kingdoms[req.Kingdom]; !found {
		return Ticket{}, fmt.Errorf("%w: %s", ErrUnknownKingdom, req.Kingdom)
	}

	locked, err := d.Store.IsLocked(ctx, req.Title, req.Kingdom)
	if err != nil {
		return Ticket{}, fmt.Errorf("checking title lock: %w", err)
	}
	if locked {
		return Ticket{}, fmt.Errorf("%w: %s in kingdom %s", ErrTitleLocked, req.Title, req.Kingdom)
	}

	n, added := d.Registry.EnqueueUnique(req.Kingdom, req)
	if !added {
		return Ticket{}, ErrAlreadyQueued
	}
	d.logger.Info("Request added to the queue",
		slog.String("kingdom", req.Kingdom),
		slog.String("user", req.UserID),
		slog.String("title", string(req.Title)),
		slog.Int("length", n),
	)

	t := Ticket{Request: req, Position: n, Queued: n > 1}
	if t.Queued {
		d.publish(event.RequestQueued(event.Text(req.Kingdom, fmt.Sprintf("%s queued for %s (position %d)", req.Username, req.Title, n)), req, n))
	}

	if next, ok := d.Registry.TryBegin(req.Kingdom); ok {
		d.wg.Add(1)
		go d.run(req.Kingdom, next)
	}

	return t, nil
}

// Stop cancels in-flight work and waits for every kingdom loop to return.
func (d *Driver) Stop() {
	d.cancel()
	d.wg.Wait()
}

// run owns the kingdom until its queue is empty. TryBegin already set the
// processing flag and dequeued req.
func (d *Driver) run(kingdom string, req queue.Request) {
	defer d.wg.Done()

	for ok := true; ok; {
		d.handle(req)
		req, ok = d.Registry.Finish(kingdom)
	}

	d.logger.Debug("Queue is empty, stopping processing", slog.String("kingdom", kingdom))
}

func (d *Driver) handle(req queue.Request) {
	logger := d.loggerFor(req.Kingdom).With(slog.String("user", req.UserID))

	reason, outcome := event.FinishedError, ""
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic while processing request",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			reason, outcome = event.FinishedError, fmt.Sprintf("panic: %v", r)
		}
		d.finish(req, reason, outcome)
	}()

	logger.Info("Processing title request", slog.String("title", string(req.Title)), slog.Int("x", req.X), slog.Int("y", req.Y))

	var err error
	reason, err = d.process(d.ctx, req)
	if err != nil {
		outcome = err.Error()
		logger.Error("Title request failed", slog.Any("error", err))
		d.notify(req.ChannelID, fmt.Sprintf("Error processing request for <@%s>: %s", req.UserID, err))
		return
	}
	outcome = string(reason)
}

func (d *Driver) finish(req queue.Request, reason event.FinishReason, outcome string) {
	status := store.StatusSuccessful
	if reason == event.FinishedError {
		status = store.StatusUnsuccessful
	}

	if err := d.Store.LogRequest(d.ctx, store.LogEntry{
		RequestID: req.ID,
		UserID:    req.UserID,
		Username:  req.Username,
		Title:     req.Title,
		Kingdom:   req.Kingdom,
		Status:    status,
		Outcome:   outcome,
		CreatedAt: time.Now(),
	}); err != nil {
		d.logger.Warn("Failed to log title request", slog.String("kingdom", req.Kingdom), slog.Any("error", err))
	}

	d.publish(event.RequestFinished(event.Text(req.Kingdom, fmt.Sprintf("%s request by %s finished: %s", req.Title, req.Username, reason)), req, reason))
}

func (d *Driver) loggerFor(kingdom string) *slog.Logger {
	if l, found := d.KingdomLoggers[kingdom]; found {
		return l
	}
	return d.logger.With(slog.String("kingdom", kingdom))
}

func (d *Driver) setState(req queue.Request, s queue.State) {
	d.Registry.SetState(req.Kingdom, s)
	d.publish(event.StateChanged(event.Text(req.Kingdom, fmt.Sprintf("%s: %s", req.Title, s)), req, s))
}

func (d *Driver) notify(channelID, text string) {
	if d.Notifier == nil || channelID == "" {
		return
	}
	if err := d.Notifier.Notify(d.ctx, channelID, text); err != nil {
		d.logger.Warn("Failed to send channel notification", slog.String("channel", channelID), slog.Any("error", err))
	}
}

func (d *Driver) publish(e event.Event) {
	if d.Events != nil {
		d.Events.Send(e)
	}
}
