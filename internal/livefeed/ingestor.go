package livefeed

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shajaurahman10/remindly-pay-flow/internal/events"
	"github.com/shajaurahman10/remindly-pay-flow/internal/observability/metrics"
	"github.com/shajaurahman10/remindly-pay-flow/internal/reconcile"
	"github.com/shajaurahman10/remindly-pay-flow/pkg/logging"
)

// State is the connection state of the ingestor, exposed for health checks.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

const (
	defaultReconnectDelay = 5 * time.Second
	defaultBufferSize     = 256
)

type eventApplier interface {
	Apply(ctx context.Context, ev events.PaymentEvent) (reconcile.Result, error)
}

// Ingestor maintains a websocket subscription to the gateway's live payment
// channel and feeds decoded updates into the reconciler.
//
// The read loop never blocks on the reconciler: decoded events go through a
// bounded buffer that sheds its oldest entry under pressure. A shed event is
// safe to lose because the webhook feed redelivers the same payment.
type Ingestor struct {
	url    string
	engine eventApplier
	mtx    *metrics.EngineMetrics
	logger *logging.Logger

	reconnectDelay time.Duration
	buffer         chan events.PaymentEvent
	dialer         *websocket.Dialer

	mu    sync.Mutex
	state State
}

// New creates an ingestor for the given websocket URL.
func New(url string, engine eventApplier, logger *logging.Logger) *Ingestor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Ingestor{
		url:            url,
		engine:         engine,
		logger:         logger,
		reconnectDelay: defaultReconnectDelay,
		buffer:         make(chan events.PaymentEvent, defaultBufferSize),
		dialer:         websocket.DefaultDialer,
	}
}

// WithReconnectDelay overrides the fixed delay between connection attempts.
func (i *Ingestor) WithReconnectDelay(d time.Duration) *Ingestor {
	if d > 0 {
		i.reconnectDelay = d
	}
	return i
}

// WithBufferSize overrides the decode buffer capacity.
func (i *Ingestor) WithBufferSize(n int) *Ingestor {
	if n > 0 {
		i.buffer = make(chan events.PaymentEvent, n)
	}
	return i
}

// WithMetrics attaches engine metrics.
func (i *Ingestor) WithMetrics(m *metrics.EngineMetrics) *Ingestor {
	i.mtx = m
	return i
}

// State returns the current connection state.
func (i *Ingestor) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == "" {
		return StateDisconnected
	}
	return i.state
}

func (i *Ingestor) setState(s State) {
	i.mu.Lock()
	i.state = s
	i.mu.Unlock()
}

// Run connects, reads, and reconnects until the context is cancelled. It
// blocks; run it in its own goroutine.
func (i *Ingestor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i.consume(ctx)
	}()

	first := true
	for {
		if ctx.Err() != nil {
			break
		}
		if !first {
			i.mtx.ObserveReconnect()
			select {
			case <-ctx.Done():
			case <-time.After(i.reconnectDelay):
			}
			if ctx.Err() != nil {
				break
			}
		}
		first = false
		i.connectAndRead(ctx)
	}

	i.setState(StateDisconnected)
	wg.Wait()
	i.logger.Info("live feed ingestor stopped")
}

// connectAndRead performs one dial and drains the connection until it drops
// or the context is cancelled.
func (i *Ingestor) connectAndRead(ctx context.Context) {
	i.setState(StateConnecting)
	conn, _, err := i.dialer.DialContext(ctx, i.url, nil)
	if err != nil {
		if ctx.Err() == nil {
			i.logger.Warn("live feed dial failed", "url", i.url, "error", err)
		}
		i.setState(StateDisconnected)
		return
	}
	i.setState(StateConnected)
	i.logger.Info("live feed connected", "url", i.url)

	// Unblock ReadMessage on shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				i.logger.Warn("live feed read failed", "error", err)
			}
			i.setState(StateDisconnected)
			return
		}

		ev, err := decode(payload, time.Now().UTC())
		if err != nil {
			// Heartbeats and unrelated broadcasts share the channel; a
			// message we cannot decode is dropped, not a reason to teardown.
			i.logger.Debug("live feed message dropped", "error", err)
			continue
		}

		select {
		case i.buffer <- ev:
		default:
			// Shed the oldest buffered event rather than stalling the read.
			select {
			case <-i.buffer:
				i.mtx.ObserveDroppedMessage()
				i.logger.Warn("live feed buffer full, dropped oldest event")
			default:
			}
			select {
			case i.buffer <- ev:
			default:
				// The freed slot was taken before our send; this time the
				// new event is the one lost.
				i.mtx.ObserveDroppedMessage()
				i.logger.Warn("live feed buffer full, dropped incoming event")
			}
		}
	}
}

// consume applies buffered events in arrival order until the context is
// cancelled. Events still buffered at shutdown are abandoned; the webhook
// feed redelivers them.
func (i *Ingestor) consume(ctx context.Context) {
	for {
		select {
		case ev := <-i.buffer:
			i.apply(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (i *Ingestor) apply(ctx context.Context, ev events.PaymentEvent) {
	res, err := i.engine.Apply(ctx, ev)
	if err != nil {
		i.logger.Error("live event apply failed", "error", err, "client_id", ev.ClientID)
		return
	}
	i.logger.Debug("live event processed",
		"event_id", ev.ID, "client_id", ev.ClientID, "outcome", res.Outcome, "reason", res.Reason)
}
