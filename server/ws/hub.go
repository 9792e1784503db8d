package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Subscriber is a connected session that can receive fanned-out frames.
// Enqueue must not block; it reports false when the subscriber's buffer is
// full, and the hub drops the subscriber in response.
type Subscriber interface {
	UserID() uint
	Enqueue(payload []byte) bool
}

// Broadcaster is the fan-out surface sessions publish through
type Broadcaster interface {
	Join(group string, sub Subscriber)
	Leave(group string, sub Subscriber)
	Publish(ctx context.Context, group string, event interface{}, excludeUserID uint)
}

// ConversationGroup names the delivery group for one conversation's
// chat sessions.
func ConversationGroup(conversationID uint) string {
	return fmt.Sprintf("conversation:%d", conversationID)
}

// UserGroup names the delivery group for one user's conversation-list
// sessions.
func UserGroup(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// envelope is the wire format on the redis channel. ExcludeUserID travels
// with the payload so every process applies the same exclusion.
type envelope struct {
	ExcludeUserID uint            `json:"exclude_user_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type hubGroup struct {
	subs   map[Subscriber]bool
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

// Hub tracks subscriber groups in this process and bridges them across
// processes over redis pub/sub. The first Join on a group subscribes the
// redis channel; the last Leave tears it down.
type Hub struct {
	rdb *redis.Client

	mu     sync.RWMutex
	groups map[string]*hubGroup
}

func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		rdb:    rdb,
		groups: make(map[string]*hubGroup),
	}
}

func channelName(group string) string {
	return "ws:" + group
}

func (h *Hub) Join(group string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.groups[group]
	if !ok {
		g = &hubGroup{subs: make(map[Subscriber]bool)}
		h.groups[group] = g
		if h.rdb != nil {
			ctx, cancel := context.WithCancel(context.Background())
			g.pubsub = h.rdb.Subscribe(ctx, channelName(group))
			g.cancel = cancel
			go h.relay(group, g.pubsub)
		}
	}
	g.subs[sub] = true
}

func (h *Hub) Leave(group string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(group, sub)
}

func (h *Hub) removeLocked(group string, sub Subscriber) {
	g, ok := h.groups[group]
	if !ok {
		return
	}
	delete(g.subs, sub)
	if len(g.subs) == 0 {
		if g.pubsub != nil {
			g.cancel()
			if err := g.pubsub.Close(); err != nil {
				log.Printf("Error closing pubsub for %s: %v", group, err)
			}
		}
		delete(h.groups, group)
	}
}

// Publish fans an event out to every subscriber of the group, here and in
// sibling processes. When redis is down the event still reaches local
// subscribers.
func (h *Hub) Publish(ctx context.Context, group string, event interface{}, excludeUserID uint) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling event for %s: %v", group, err)
		return
	}
	env, err := json.Marshal(envelope{ExcludeUserID: excludeUserID, Payload: payload})
	if err != nil {
		log.Printf("Error marshalling envelope for %s: %v", group, err)
		return
	}

	if h.rdb != nil {
		if err := h.rdb.Publish(ctx, channelName(group), env).Err(); err == nil {
			return
		} else {
			log.Printf("Redis publish failed for %s, delivering locally: %v", group, err)
		}
	}
	h.deliverLocal(group, env)
}

// relay pumps redis messages for one group into local subscribers
func (h *Hub) relay(group string, pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		h.deliverLocal(group, []byte(msg.Payload))
	}
}

func (h *Hub) deliverLocal(group string, env []byte) {
	var e envelope
	if err := json.Unmarshal(env, &e); err != nil {
		log.Printf("Error unmarshalling envelope for %s: %v", group, err)
		return
	}

	h.mu.RLock()
	g, ok := h.groups[group]
	if !ok {
		h.mu.RUnlock()
		return
	}
	var stalled []Subscriber
	for sub := range g.subs {
		if e.ExcludeUserID != 0 && sub.UserID() == e.ExcludeUserID {
			continue
		}
		if !sub.Enqueue(e.Payload) {
			stalled = append(stalled, sub)
		}
	}
	h.mu.RUnlock()

	// A subscriber that cannot keep up is cut loose rather than allowed
	// to stall the group.
	for _, sub := range stalled {
		log.Printf("Dropping slow subscriber (user %d) from %s", sub.UserID(), group)
		h.Leave(group, sub)
	}
}
