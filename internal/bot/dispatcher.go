// Package bot routes inbound gateway events through the rate limiter and the
// per-identity dialog state machine.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"monitorbot/internal/domain"
	"monitorbot/internal/knowledge"
	"monitorbot/internal/ratelimit"
	"monitorbot/internal/resolver"
	"monitorbot/internal/session"
)

// identityQueueSize bounds the per-identity event backlog. An identity that
// outruns its own worker loses the overflow rather than stalling dispatch.
const identityQueueSize = 16

// dumpLimit caps the /show_db output so it fits a transport message.
const dumpLimit = 4000

// Gateway is the outbound surface of the chat transport.
type Gateway interface {
	Send(ctx context.Context, chat int64, text string) error
	SendChoices(ctx context.Context, chat int64, text string, choices []domain.Choice) error
	Edit(ctx context.Context, chat int64, messageID int, text string) error
	AckCallback(ctx context.Context, callbackID string) error
}

// Resolver produces answers for free-form questions.
type Resolver interface {
	Resolve(ctx context.Context, identity int64, question string, progress resolver.ProgressFunc) (domain.Answer, error)
}

// Store is the knowledge surface the dispatcher mutates and dumps.
type Store interface {
	Add(question, answer string) error
	Dump() []knowledge.Entry
}

// Config carries dispatcher tunables.
type Config struct {
	// AdminIDs may use the knowledge-entry flow and receive save offers.
	AdminIDs []int64
	// Now supplies the clock for rate-limit admission; defaults to time.Now.
	Now func() time.Time
}

// Dispatcher consumes gateway events and drives the conversation. Events for
// the same identity are handled strictly in arrival order by a dedicated
// worker goroutine, so one user's slow remote call never delays another's.
type Dispatcher struct {
	gw       Gateway
	resolver Resolver
	store    Store
	sessions *session.Manager
	limiter  *ratelimit.Limiter
	admins   map[int64]bool
	now      func() time.Time
	log      *slog.Logger

	mu      sync.Mutex
	workers map[int64]chan domain.Event
	wg      sync.WaitGroup
}

func New(gw Gateway, r Resolver, store Store, sessions *session.Manager, limiter *ratelimit.Limiter, cfg Config, log *slog.Logger) (*Dispatcher, error) {
	if gw == nil {
		return nil, errors.New("bot: gateway must not be nil")
	}
	if r == nil {
		return nil, errors.New("bot: resolver must not be nil")
	}
	if store == nil {
		return nil, errors.New("bot: store must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("bot: session manager must not be nil")
	}
	if limiter == nil {
		return nil, errors.New("bot: rate limiter must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	admins := make(map[int64]bool, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = true
	}
	return &Dispatcher{
		gw:       gw,
		resolver: r,
		store:    store,
		sessions: sessions,
		limiter:  limiter,
		admins:   admins,
		now:      now,
		log:      log,
		workers:  make(map[int64]chan domain.Event),
	}, nil
}

// Run dispatches events until ctx is cancelled or events closes, then drains
// the per-identity workers before returning.
func (d *Dispatcher) Run(ctx context.Context, events <-chan domain.Event) error {
	defer d.shutdown()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			d.enqueue(ctx, ev)
		}
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, ev domain.Event) {
	d.mu.Lock()
	ch, ok := d.workers[ev.Identity]
	if !ok {
		ch = make(chan domain.Event, identityQueueSize)
		d.workers[ev.Identity] = ch
		d.wg.Add(1)
		go d.runWorker(ctx, ch)
	}
	d.mu.Unlock()

	select {
	case ch <- ev:
	default:
		d.log.Warn("identity queue full, event dropped", "identity", ev.Identity)
	}
}

func (d *Dispatcher) runWorker(ctx context.Context, ch <-chan domain.Event) {
	defer d.wg.Done()
	for ev := range ch {
		d.handle(ctx, ev)
	}
}

func (d *Dispatcher) shutdown() {
	d.mu.Lock()
	for _, ch := range d.workers {
		close(ch)
	}
	d.workers = make(map[int64]chan domain.Event)
	d.mu.Unlock()
	d.wg.Wait()
}

// send delivers text and logs a delivery failure; the gateway is a
// collaborator whose errors never propagate past the call site.
func (d *Dispatcher) send(ctx context.Context, chat int64, text string) {
	if err := d.gw.Send(ctx, chat, text); err != nil {
		d.log.Warn("message delivery failed", "chat", chat, "err", err)
	}
}

func (d *Dispatcher) sendChoices(ctx context.Context, chat int64, text string, choices []domain.Choice) {
	if err := d.gw.SendChoices(ctx, chat, text, choices); err != nil {
		d.log.Warn("choice delivery failed", "chat", chat, "err", err)
	}
}

func (d *Dispatcher) edit(ctx context.Context, chat int64, messageID int, text string) {
	if err := d.gw.Edit(ctx, chat, messageID, text); err != nil {
		d.log.Warn("message edit failed", "chat", chat, "err", err)
	}
}
