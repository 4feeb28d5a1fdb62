package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/paircast/relay/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Client struct {
	Events chan Event
	Done   chan struct{}
}

// Broker fans events out to every subscribed receiver. Fan-out goes through
// redis pubsub so multiple server instances see the same stream.
type Broker struct {
	redis      *redisclient.Client
	clients    map[*Client]bool
	mu         sync.RWMutex
	subscribed bool
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[*Client]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe() *Client {
	client := &Client{
		Events: make(chan Event, 100),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	if !b.subscribed {
		b.subscribed = true
		go b.subscribeToRedis()
	}
	b.clients[client] = true
	clientCount := len(b.clients)
	b.mu.Unlock()

	log.Info().
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client.Done)

		log.Info().
			Int("clientCount", len(b.clients)).
			Msg("sse client unsubscribed")
	}
}

func (b *Broker) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.EventsChannel()
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis() {
	channel := redisclient.EventsChannel()
	pubsub := b.redis.Subscribe(b.ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(event)
		}
	}
}

func (b *Broker) broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("type", event.Type).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for client := range b.clients {
		close(client.Done)
	}
	b.clients = make(map[*Client]bool)
}

func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
