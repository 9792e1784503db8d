package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dormside/dormside/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// fakePresenceStore keeps sets in memory and can simulate an outage
type fakePresenceStore struct {
	sets    map[string]map[string]bool
	expires map[string]time.Duration
	err     error
}

func newFakePresenceStore() *fakePresenceStore {
	return &fakePresenceStore{
		sets:    make(map[string]map[string]bool),
		expires: make(map[string]time.Duration),
	}
}

func (f *fakePresenceStore) SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	if f.sets[key] == nil {
		f.sets[key] = make(map[string]bool)
	}
	for _, m := range members {
		f.sets[key][fmt.Sprint(m)] = true
	}
	cmd.SetVal(int64(len(members)))
	return cmd
}

func (f *fakePresenceStore) SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	for _, m := range members {
		delete(f.sets[key], fmt.Sprint(m))
	}
	cmd.SetVal(int64(len(members)))
	return cmd
}

func (f *fakePresenceStore) SMembers(ctx context.Context, key string) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	var members []string
	for m := range f.sets[key] {
		members = append(members, m)
	}
	cmd.SetVal(members)
	return cmd
}

func (f *fakePresenceStore) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	f.expires[key] = expiration
	cmd.SetVal(true)
	return cmd
}

// stubUserResolver satisfies the user lookup side of the presence service
type stubUserResolver struct {
	users map[uint]models.UserSummary
}

func (s *stubUserResolver) CreateUser(user *models.User) (*models.User, error) { return user, nil }
func (s *stubUserResolver) IsEmailExist(email string) error                    { return nil }
func (s *stubUserResolver) FindUserByEmail(email string) (*models.User, error) {
	return nil, errors.New("not implemented")
}
func (s *stubUserResolver) FindUserByID(id uint) (*models.User, error) {
	return nil, errors.New("not implemented")
}
func (s *stubUserResolver) FindUserSummaries(ids []uint) ([]models.UserSummary, error) {
	var out []models.UserSummary
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}
func (s *stubUserResolver) UpdateUser(user *models.User) error                 { return nil }
func (s *stubUserResolver) AddToBlackList(blacklist *models.Blacklist) error   { return nil }
func (s *stubUserResolver) IsTokenInBlacklist(token string) bool               { return false }

func TestPresenceMarkOnlineAndList(t *testing.T) {
	store := newFakePresenceStore()
	resolver := &stubUserResolver{users: map[uint]models.UserSummary{
		1: {ID: 1, Fullname: "Ada", Email: "ada@uni.edu"},
		2: {ID: 2, Fullname: "Ben", Email: "ben@uni.edu"},
	}}
	svc := NewPresenceService(store, resolver)
	ctx := context.Background()

	svc.MarkOnline(ctx, 42, 1)
	svc.MarkOnline(ctx, 42, 2)

	online := svc.ListOnline(ctx, 42)
	assert.Len(t, online, 2)
}

func TestPresenceMarkOnlineRefreshesTTL(t *testing.T) {
	store := newFakePresenceStore()
	svc := NewPresenceService(store, &stubUserResolver{})
	ctx := context.Background()

	svc.MarkOnline(ctx, 42, 1)

	assert.Equal(t, presenceTTL, store.expires[presenceKey(42)])
}

func TestPresenceMarkOffline(t *testing.T) {
	store := newFakePresenceStore()
	resolver := &stubUserResolver{users: map[uint]models.UserSummary{
		1: {ID: 1, Fullname: "Ada", Email: "ada@uni.edu"},
	}}
	svc := NewPresenceService(store, resolver)
	ctx := context.Background()

	svc.MarkOnline(ctx, 42, 1)
	assert.True(t, svc.IsOnline(ctx, 42, 1))

	svc.MarkOffline(ctx, 42, 1)
	assert.False(t, svc.IsOnline(ctx, 42, 1))
	assert.Empty(t, svc.ListOnline(ctx, 42))
}

func TestPresenceScopedPerConversation(t *testing.T) {
	store := newFakePresenceStore()
	svc := NewPresenceService(store, &stubUserResolver{})
	ctx := context.Background()

	svc.MarkOnline(ctx, 42, 1)

	assert.True(t, svc.IsOnline(ctx, 42, 1))
	assert.False(t, svc.IsOnline(ctx, 43, 1))
}

func TestPresenceListOnlineStoreOutage(t *testing.T) {
	store := newFakePresenceStore()
	store.err = errors.New("connection refused")
	svc := NewPresenceService(store, &stubUserResolver{})

	online := svc.ListOnline(context.Background(), 42)

	// Outages must read as "nobody online", never as a failure.
	assert.NotNil(t, online)
	assert.Empty(t, online)
}
