package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/dormside/dormside/db"
	"github.com/dormside/dormside/models"
	"github.com/redis/go-redis/v9"
)

// presenceTTL is how long a presence mark survives without a refresh
const presenceTTL = 5 * time.Minute

// PresenceStore is the slice of redis used for presence tracking; a
// conversation's online users live in one set value with a TTL.
type PresenceStore interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

type PresenceService interface {
	MarkOnline(ctx context.Context, conversationID, userID uint)
	MarkOffline(ctx context.Context, conversationID, userID uint)
	ListOnline(ctx context.Context, conversationID uint) []models.UserSummary
	IsOnline(ctx context.Context, conversationID, userID uint) bool
}

type presenceService struct {
	store    PresenceStore
	authRepo db.AuthRepository
}

func NewPresenceService(store PresenceStore, authRepo db.AuthRepository) PresenceService {
	return &presenceService{store: store, authRepo: authRepo}
}

func presenceKey(conversationID uint) string {
	return fmt.Sprintf("presence:conversation:%d", conversationID)
}

// MarkOnline adds the user to the conversation's presence set and refreshes
// the TTL. Best effort: presence is ephemeral state and a store outage must
// never take a session down.
func (p *presenceService) MarkOnline(ctx context.Context, conversationID, userID uint) {
	key := presenceKey(conversationID)
	if err := p.store.SAdd(ctx, key, userID).Err(); err != nil {
		log.Printf("presence mark online error: %v", err)
		return
	}
	if err := p.store.Expire(ctx, key, presenceTTL).Err(); err != nil {
		log.Printf("presence expire error: %v", err)
	}
}

func (p *presenceService) MarkOffline(ctx context.Context, conversationID, userID uint) {
	if err := p.store.SRem(ctx, presenceKey(conversationID), userID).Err(); err != nil {
		log.Printf("presence mark offline error: %v", err)
	}
}

// ListOnline resolves the stored ids to user summaries at read time. The set
// only ever holds ids. Returns an empty list on store errors.
func (p *presenceService) ListOnline(ctx context.Context, conversationID uint) []models.UserSummary {
	members, err := p.store.SMembers(ctx, presenceKey(conversationID)).Result()
	if err != nil {
		log.Printf("presence list error: %v", err)
		return []models.UserSummary{}
	}

	ids := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}

	summaries, err := p.authRepo.FindUserSummaries(ids)
	if err != nil {
		log.Printf("presence resolve error: %v", err)
		return []models.UserSummary{}
	}
	if summaries == nil {
		summaries = []models.UserSummary{}
	}
	return summaries
}

func (p *presenceService) IsOnline(ctx context.Context, conversationID, userID uint) bool {
	members, err := p.store.SMembers(ctx, presenceKey(conversationID)).Result()
	if err != nil {
		return false
	}
	want := strconv.FormatUint(uint64(userID), 10)
	for _, m := range members {
		if m == want {
			return true
		}
	}
	return false
}
