package stream

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AllDevices is the subscription key that receives every device's fixes.
const AllDevices = "*"

// publishTimeout bounds how long Broadcast waits on Redis.
var publishTimeout = 500 * time.Millisecond

type Hub struct {
	id      string
	redis   *redis.Client
	log     zerolog.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex

	ready  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

type Client struct {
	Key  string
	Send chan []byte
}

// envelope tags bridged messages with the publishing hub so it can skip its
// own echoes.
type envelope struct {
	Origin  string          `json:"origin"`
	Device  string          `json:"device"`
	Payload json.RawMessage `json:"payload"`
}

func NewHub(redisClient *redis.Client, log zerolog.Logger) *Hub {
	h := &Hub{
		id:      uuid.NewString(),
		redis:   redisClient,
		log:     log,
		clients: map[string]map[*Client]struct{}{},
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}

	if redisClient == nil {
		close(h.ready)
		close(h.done)
		return h
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.subscribeRedis(ctx)
	return h
}

func (h *Hub) Register(key string) *Client {
	client := &Client{
		Key:  key,
		Send: make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[key] == nil {
		h.clients[key] = map[*Client]struct{}{}
	}
	h.clients[key][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if keyClients, ok := h.clients[client.Key]; ok {
		if _, registered := keyClients[client]; !registered {
			return
		}
		delete(keyClients, client)
		if len(keyClients) == 0 {
			delete(h.clients, client.Key)
		}
		close(client.Send)
	}
}

// Broadcast delivers payload to local subscribers of device and of
// AllDevices, then publishes it for other instances when Redis is set.
func (h *Hub) Broadcast(device string, payload []byte) {
	h.deliver(device, payload)

	if h.redis == nil {
		return
	}
	msg, err := json.Marshal(envelope{Origin: h.id, Device: device, Payload: payload})
	if err != nil {
		h.log.Error().Err(err).Msg("stream envelope encode failed")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.redis.Publish(ctx, redisChannel(device), msg).Err(); err != nil {
		h.log.Warn().Err(err).Str("device", device).Msg("redis publish error")
	}
}

// Close stops the Redis bridge. Registered clients are left to their
// handlers.
func (h *Hub) Close() {
	if h.cancel != nil {
		h.cancel()
	}
	<-h.done
}

func (h *Hub) deliver(device string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, key := range []string{device, AllDevices} {
		for client := range h.clients[key] {
			select {
			case client.Send <- payload:
			default:
			}
		}
		if device == AllDevices {
			break
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context) {
	defer close(h.done)

	pubsub := h.redis.PSubscribe(ctx, redisChannel(AllDevices))
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		h.log.Error().Err(err).Msg("redis subscribe failed")
		close(h.ready)
		return
	}
	close(h.ready)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed stream message")
				continue
			}
			if env.Origin == h.id {
				continue
			}
			if env.Device == "" {
				env.Device = deviceFromChannel(msg.Channel)
			}
			h.deliver(env.Device, env.Payload)
		}
	}
}

func redisChannel(device string) string {
	return "gps:" + device + ":fixes"
}

func deviceFromChannel(ch string) string {
	// gps:{device}:fixes
	const prefix = "gps:"
	const suffix = ":fixes"
	if len(ch) <= len(prefix)+len(suffix) || !strings.HasPrefix(ch, prefix) || !strings.HasSuffix(ch, suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
