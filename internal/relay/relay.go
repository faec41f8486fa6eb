// Package relay shares dispatched events between server instances over Redis pub/sub.
package relay

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-fanout/internal/core"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "wirechat:fanout"

// Envelope is a dispatched event as published on the channel.
type Envelope struct {
	Origin         string `json:"origin"`
	ConversationID int64  `json:"conversationId"`
	Exclude        string `json:"exclude,omitempty"`
	Payload        []byte `json:"payload"`
}

// DeliverFunc hands a remote event to the local registry.
type DeliverFunc func(ctx context.Context, conversationID int64, payload []byte, excludeConnID string) (int, error)

// Relay publishes local dispatches and delivers remote ones.
type Relay struct {
	rdb        *redis.Client
	channel    string
	instanceID string
	log        zerolog.Logger
}

var _ core.Peer = (*Relay)(nil)

// New creates a relay identified by instanceID on channel.
func New(rdb *redis.Client, channel, instanceID string, logger *zerolog.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	r := &Relay{
		rdb:        rdb,
		channel:    channel,
		instanceID: instanceID,
		log:        zerolog.Nop(),
	}
	if logger != nil {
		r.log = logger.With().Str("component", "relay").Str("instance", instanceID).Logger()
	}
	return r
}

// InstanceID identifies this process on the channel.
func (r *Relay) InstanceID() string {
	return r.instanceID
}

// Publish sends an encoded event to every other instance.
func (r *Relay) Publish(ctx context.Context, conversationID int64, payload []byte, excludeConnID string) error {
	data, err := json.Marshal(Envelope{
		Origin:         r.instanceID,
		ConversationID: conversationID,
		Exclude:        excludeConnID,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}

// Run subscribes to the channel and delivers events from other instances
// until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, deliver DeliverFunc) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Info().Str("channel", r.channel).Msg("relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(ctx, msg.Payload, deliver)
		}
	}
}

func (r *Relay) handle(ctx context.Context, raw string, deliver DeliverFunc) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		r.log.Warn().Err(err).Msg("dropping malformed envelope")
		return
	}
	if env.Origin == r.instanceID {
		return
	}

	reached, err := deliver(ctx, env.ConversationID, env.Payload, env.Exclude)
	if err != nil {
		r.log.Warn().Err(err).Int64("conversation_id", env.ConversationID).Str("origin", env.Origin).Msg("remote event not delivered")
		return
	}
	r.log.Debug().Int64("conversation_id", env.ConversationID).Int("reached", reached).Msg("remote event delivered")
}
