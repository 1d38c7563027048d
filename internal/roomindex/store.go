// Package roomindex mirrors room summaries into Redis so several server processes
// (or operators) can list every open room.
package roomindex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/park285/cheese-match-server/pkg/matchdto"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 2 * time.Hour
	keyPrefix  = "match:"
)

// entry is stored as JSON under match:room:<id>.
type entry struct {
	matchdto.RoomSummary
	Node      string    `json:"node"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	rdb  *redis.Client
	node string
	ttl  time.Duration
	now  func() time.Time
}

// NewStore tags every entry with node, the id of this server process.
func NewStore(rdb *redis.Client, node string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, node: node, ttl: ttl, now: time.Now}
}

func keyRoom(id string) string { return keyPrefix + "room:" + strings.TrimSpace(id) }
func keyIndex() string         { return keyPrefix + "rooms" }

func (s *Store) Upsert(ctx context.Context, sum matchdto.RoomSummary) error {
	if strings.TrimSpace(sum.RoomID) == "" {
		return nil
	}
	raw, err := json.Marshal(entry{RoomSummary: sum, Node: s.node, UpdatedAt: s.now().UTC()})
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyRoom(sum.RoomID), raw, s.ttl)
	pipe.SAdd(ctx, keyIndex(), sum.RoomID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("roomindex upsert %s: %w", sum.RoomID, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, roomID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, keyRoom(roomID))
	pipe.SRem(ctx, keyIndex(), roomID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("roomindex remove %s: %w", roomID, err)
	}
	return nil
}

// List returns every mirrored room, oldest first. Index members whose entry has
// expired are pruned.
func (s *Store) List(ctx context.Context) ([]matchdto.RoomSummary, error) {
	ids, err := s.rdb.SMembers(ctx, keyIndex()).Result()
	if err != nil {
		return nil, err
	}
	out := make([]matchdto.RoomSummary, 0, len(ids))
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, keyRoom(id)).Bytes()
		if err == redis.Nil {
			_ = s.rdb.SRem(ctx, keyIndex(), id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		out = append(out, e.RoomSummary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].RoomID < out[j].RoomID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}

// Purge removes every entry written by this node. Used on shutdown.
func (s *Store) Purge(ctx context.Context) (int, error) {
	ids, err := s.rdb.SMembers(ctx, keyIndex()).Result()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, keyRoom(id)).Bytes()
		if err != nil {
			continue
		}
		var e entry
		if json.Unmarshal(raw, &e) != nil || e.Node != s.node {
			continue
		}
		if err := s.Remove(ctx, id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ParseRedisURL converts redis://[:password@]host:port[/db] into client options.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("redis url has no host")
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

// Connect parses redisURL, dials and pings.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
