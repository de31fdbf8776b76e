// Package popularity tracks which search keywords are requested most
// often. Tracking is strictly best-effort: a failed record or read never
// affects the search that triggered it.
package popularity

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// KeywordCount is one entry of a popularity listing, most requested first.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int64  `json:"count"`
}

// Tracker records keyword usage and answers top-N queries.
type Tracker interface {
	Record(ctx context.Context, keyword string)
	Top(ctx context.Context, n int) []KeywordCount
}

// Memory is the in-process tracker. Counts are bounded by an LRU so a
// long-running instance cannot grow without limit; evicted keywords simply
// restart from zero if seen again.
type Memory struct {
	mu     sync.Mutex
	counts *lru.Cache[string, int64]
}

func NewMemory(size int) (*Memory, error) {
	if size < 1 {
		size = 256
	}
	counts, err := lru.New[string, int64](size)
	if err != nil {
		return nil, err
	}
	return &Memory{counts: counts}, nil
}

func (m *Memory) Record(_ context.Context, keyword string) {
	keyword = normalizeKeyword(keyword)
	if keyword == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count, _ := m.counts.Get(keyword)
	m.counts.Add(keyword, count+1)
}

func (m *Memory) Top(_ context.Context, n int) []KeywordCount {
	if n < 1 {
		return nil
	}
	m.mu.Lock()
	keys := m.counts.Keys()
	entries := make([]KeywordCount, 0, len(keys))
	for _, k := range keys {
		if count, ok := m.counts.Peek(k); ok {
			entries = append(entries, KeywordCount{Keyword: k, Count: count})
		}
	}
	m.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Count > entries[j].Count })
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// Redis is the shared tracker backed by a sorted set, for deployments
// running more than one instance.
type Redis struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

func NewRedis(client *redis.Client, key string, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, key: key, logger: logger.With("component", "popularity")}
}

func (r *Redis) Record(ctx context.Context, keyword string) {
	keyword = normalizeKeyword(keyword)
	if keyword == "" {
		return
	}
	if err := r.client.ZIncrBy(ctx, r.key, 1, keyword).Err(); err != nil {
		r.logger.Warn("keyword record failed", "keyword", keyword, "error", err)
	}
}

func (r *Redis) Top(ctx context.Context, n int) []KeywordCount {
	if n < 1 {
		return nil
	}
	members, err := r.client.ZRevRangeWithScores(ctx, r.key, 0, int64(n-1)).Result()
	if err != nil {
		r.logger.Warn("keyword listing failed", "error", err)
		return nil
	}
	entries := make([]KeywordCount, 0, len(members))
	for _, m := range members {
		keyword, ok := m.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, KeywordCount{Keyword: keyword, Count: int64(m.Score)})
	}
	return entries
}

func normalizeKeyword(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}
