package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirechat-fanout/internal/store"
)

const (
	defaultWriteTimeout = 5 * time.Second
	maxParallelWrites   = 64
)

// Dispatcher fans events out to the live connections of a conversation's participants.
type Dispatcher struct {
	registry     *Registry
	members      MembershipProvider
	codec        Codec
	peer         Peer
	writeTimeout time.Duration
	locks        *keyedMutex
	log          zerolog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPeer forwards every local dispatch to other instances.
func WithPeer(p Peer) DispatcherOption {
	return func(d *Dispatcher) { d.peer = p }
}

// WithWriteTimeout bounds each connection write.
func WithWriteTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.writeTimeout = timeout
		}
	}
}

// NewDispatcher wires a dispatcher to its registry and collaborators.
func NewDispatcher(registry *Registry, members MembershipProvider, codec Codec, logger *zerolog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:     registry,
		members:      members,
		codec:        codec,
		writeTimeout: defaultWriteTimeout,
		locks:        newKeyedMutex(),
		log:          zerolog.Nop(),
	}
	if logger != nil {
		d.log = logger.With().Str("component", "dispatcher").Logger()
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DispatchOption adjusts a single Dispatch call.
type DispatchOption func(*dispatchParams)

type dispatchParams struct {
	excludeConn string
	actor       int64
	checkActor  bool
}

// ExcludeConn skips the connection with the given id.
func ExcludeConn(connID string) DispatchOption {
	return func(p *dispatchParams) { p.excludeConn = connID }
}

// FromMember aborts the dispatch unless userID is an active participant.
func FromMember(userID int64) DispatchOption {
	return func(p *dispatchParams) {
		p.actor = userID
		p.checkActor = true
	}
}

// Dispatch delivers ev to every live connection of the conversation's active
// participants and returns how many connections were reached.
// Failed writes evict the affected connection and never abort the call.
// Membership failures abort before any write.
func (d *Dispatcher) Dispatch(ctx context.Context, conversationID int64, ev *Event, opts ...DispatchOption) (int, error) {
	var params dispatchParams
	for _, opt := range opts {
		opt(&params)
	}

	payload, err := d.codec.Encode(ev)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", ev.Kind, err)
	}

	// The originator may go away mid-call; recipients must still be served.
	ctx = context.WithoutCancel(ctx)

	unlock := d.locks.Lock(conversationID)
	defer unlock()

	members, err := d.resolve(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if params.checkActor && !lo.Contains(members, params.actor) {
		return 0, ErrNotParticipant
	}

	reached := d.deliver(ctx, conversationID, members, payload, params.excludeConn)

	if d.peer != nil {
		if err := d.peer.Publish(ctx, conversationID, payload, params.excludeConn); err != nil {
			d.log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("relay publish failed")
		}
	}

	d.log.Debug().
		Int64("conversation_id", conversationID).
		Str("kind", ev.Kind.String()).
		Int("reached", reached).
		Msg("dispatched")
	return reached, nil
}

// DeliverEncoded delivers an already encoded payload to local connections only.
// Used by the relay for events that originated on another instance.
func (d *Dispatcher) DeliverEncoded(ctx context.Context, conversationID int64, payload []byte, excludeConnID string) (int, error) {
	unlock := d.locks.Lock(conversationID)
	defer unlock()

	members, err := d.resolve(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	return d.deliver(ctx, conversationID, members, payload, excludeConnID), nil
}

// Unicast sends ev to a single connection, evicting it if the write fails.
func (d *Dispatcher) Unicast(ctx context.Context, conn Conn, ev *Event) error {
	payload, err := d.codec.Encode(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Kind, err)
	}
	if err := d.write(context.WithoutCancel(ctx), conn, payload); err != nil {
		d.evict(conn)
		return err
	}
	return nil
}

func (d *Dispatcher) resolve(ctx context.Context, conversationID int64) ([]int64, error) {
	members, err := d.members.ActiveParticipants(ctx, conversationID)
	switch {
	case err == nil:
		return lo.Uniq(members), nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("conversation %d: %w", conversationID, ErrNotFound)
	case errors.Is(err, ErrMembershipResolution):
		d.log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("membership unavailable")
		return nil, err
	default:
		d.log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("membership unavailable")
		return nil, fmt.Errorf("%w: %w", ErrMembershipResolution, err)
	}
}

// deliver writes payload to every target connection in parallel, so one
// stuck recipient costs the whole call at most one write timeout.
func (d *Dispatcher) deliver(ctx context.Context, conversationID int64, members []int64, payload []byte, exclude string) int {
	var targets []Conn
	for _, userID := range members {
		for _, conn := range d.registry.Connections(userID) {
			if exclude != "" && conn.ID() == exclude {
				continue
			}
			targets = append(targets, conn)
		}
	}

	var (
		reached atomic.Int64
		g       errgroup.Group
	)
	g.SetLimit(maxParallelWrites)
	for _, conn := range targets {
		g.Go(func() error {
			if err := d.write(ctx, conn, payload); err != nil {
				d.log.Debug().
					Err(err).
					Int64("conversation_id", conversationID).
					Int64("user_id", conn.UserID()).
					Str("conn_id", conn.ID()).
					Msg("dropping connection after failed write")
				d.evict(conn)
				return nil
			}
			reached.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(reached.Load())
}

func (d *Dispatcher) write(ctx context.Context, conn Conn, payload []byte) error {
	wctx, cancel := context.WithTimeout(ctx, d.writeTimeout)
	defer cancel()
	if err := conn.Send(wctx, payload); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

func (d *Dispatcher) evict(conn Conn) {
	d.registry.Remove(conn)
	_ = conn.Close()
}

// keyedMutex serializes work per conversation without a global lock.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int64]*refMutex)}
}

// Lock acquires the mutex for key and returns its release func.
func (k *keyedMutex) Lock(key int64) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
