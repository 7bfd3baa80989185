package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pkaro/zillowbot/internal/listing"
	"github.com/pkaro/zillowbot/internal/mailbox"
)

// State names the pipeline's position in its lifecycle, for logs and
// status queries.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateSelecting  State = "selecting"
	StatePolling    State = "polling"
	StateSleeping   State = "sleeping"
	StateClosed     State = "closed"
	StateFailed     State = "failed"
)

// session is the slice of mailbox.Session the poll loop drives.
type session interface {
	Select(ctx context.Context, mailbox string, readOnly bool) error
	SearchUnseen(ctx context.Context, sender, subject string) ([]mailbox.Handle, error)
	Fetch(ctx context.Context, h mailbox.Handle) ([]byte, error)
	MarkSeen(ctx context.Context, h mailbox.Handle) error
	Close() error
}

// dialFunc opens a mailbox session.
type dialFunc func(ctx context.Context, cfg mailbox.Config) (session, error)

// Config carries everything one polling run needs. The pipeline treats
// the fields as opaque; validating them is the caller's concern.
type Config struct {
	// Mailbox is the account the pipeline connects to.
	Mailbox mailbox.Config

	// MailboxName is the folder to watch, typically "INBOX".
	MailboxName string

	// Sender and Subject filter the search: messages from Sender whose
	// subject contains Subject.
	Sender  string
	Subject string

	// PollInterval is how long the pipeline sleeps between search cycles.
	PollInterval time.Duration
}

// Pipeline owns a mailbox session and turns unseen notification emails
// into an ordered stream of listings. Each message is fetched, extracted
// and marked seen before its listing is handed over, one message at a
// time, in the order the search returned them.
type Pipeline struct {
	cfg  Config
	log  zerolog.Logger
	dial dialFunc

	mu      sync.Mutex
	state   State
	started bool
}

// New builds a Pipeline. It does not touch the network; Run does.
func New(cfg Config, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:   cfg,
		log:   log.With().Str("component", "pipeline").Logger(),
		state: StateIdle,
		dial: func(ctx context.Context, cfg mailbox.Config) (session, error) {
			return mailbox.Dial(ctx, cfg)
		},
	}
}

// State reports where the pipeline currently is in its lifecycle.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	p.log.Debug().Str("state", string(s)).Msg("state changed")
}

// Run connects, selects the configured mailbox and produces listings
// until ctx is cancelled or a session-level operation fails. Listings
// arrive on the first channel in mailbox search order; sends block until
// the consumer takes delivery. The second channel reports the terminal
// error once the listing channel has closed: nil after cancellation, the
// fatal session error otherwise. A Pipeline is good for one Run.
func (p *Pipeline) Run(ctx context.Context) (<-chan listing.Listing, <-chan error) {
	out := make(chan listing.Listing)
	errc := make(chan error, 1)

	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		close(out)
		errc <- errors.New("pipeline already ran")
		close(errc)
		return out, errc
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		err := p.run(ctx, out)
		if err != nil {
			p.setState(StateFailed)
		} else {
			p.setState(StateClosed)
		}
		close(out)
		errc <- err
		close(errc)
	}()

	return out, errc
}

func (p *Pipeline) run(ctx context.Context, out chan<- listing.Listing) error {
	p.setState(StateConnecting)
	sess, err := p.dial(ctx, p.cfg.Mailbox)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			p.log.Warn().Err(err).Msg("closing mailbox session")
		}
	}()

	p.setState(StateSelecting)
	if err := sess.Select(ctx, p.cfg.MailboxName, false); err != nil {
		return err
	}

	p.log.Info().
		Str("mailbox", p.cfg.MailboxName).
		Str("sender", p.cfg.Sender).
		Str("subject", p.cfg.Subject).
		Dur("poll_interval", p.cfg.PollInterval).
		Msg("watching for listing notifications")

	timer := time.NewTimer(p.cfg.PollInterval)
	defer timer.Stop()

	for {
		p.setState(StatePolling)
		if err := p.cycle(ctx, sess, out); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		p.setState(StateSleeping)
		timer.Reset(p.cfg.PollInterval)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

// cycle performs one search pass: find unseen matches and process each
// to completion, strictly in search order.
func (p *Pipeline) cycle(ctx context.Context, sess session, out chan<- listing.Listing) error {
	log := p.log.With().Str("cycle_id", uuid.New().String()).Logger()

	handles, err := sess.SearchUnseen(ctx, p.cfg.Sender, p.cfg.Subject)
	if err != nil {
		return err
	}

	if len(handles) == 0 {
		log.Debug().Msg("no unseen notifications")
		return nil
	}
	log.Info().Int("matches", len(handles)).Msg("unseen notifications found")

	for _, h := range handles {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.process(ctx, log, sess, h, out); err != nil {
			return err
		}
	}

	return nil
}

// process handles one message end to end: fetch, extract, mark seen,
// emit. The seen flag is set before the listing is handed over, so a
// delivered listing is never searched up again. Extraction trouble is
// absorbed here; session trouble is returned and ends the run.
func (p *Pipeline) process(
	ctx context.Context,
	log zerolog.Logger,
	sess session,
	h mailbox.Handle,
	out chan<- listing.Listing,
) error {
	raw, err := sess.Fetch(ctx, h)
	if err != nil {
		return err
	}

	l, err := listing.Extract(raw)
	if err != nil {
		log.Error().Err(err).
			Uint32("uid", uint32(h)).
			Msg("extraction failed, skipping message")
		// Still mark it seen: a poison message must not come back on
		// the next cycle.
		return sess.MarkSeen(ctx, h)
	}

	if err := sess.MarkSeen(ctx, h); err != nil {
		return err
	}

	select {
	case out <- l:
	case <-ctx.Done():
		return ctx.Err()
	}

	log.Debug().Uint32("uid", uint32(h)).Msg("listing emitted")
	return nil
}
