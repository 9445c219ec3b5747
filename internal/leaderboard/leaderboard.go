package leaderboard

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Entry is one leaderboard row.
type Entry struct {
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}

// Leaderboard keeps per-session scores in a Redis sorted set, accumulated
// across rounds and game families.
type Leaderboard struct {
	client *redis.Client
}

// New wraps a Redis client.
func New(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client}
}

func (l *Leaderboard) key(sessionCode string) string {
	return fmt.Sprintf("session:%s:lb", sessionCode)
}

// AddScore accumulates points for a participant.
func (l *Leaderboard) AddScore(ctx context.Context, sessionCode, nickname string, points int) error {
	return l.client.ZIncrBy(ctx, l.key(sessionCode), float64(points), nickname).Err()
}

// GetTop returns the best entries, rank 1 first.
func (l *Leaderboard) GetTop(ctx context.Context, sessionCode string, limit int) ([]Entry, error) {
	results, err := l.client.ZRevRangeWithScores(ctx, l.key(sessionCode), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(results))
	for i, z := range results {
		nickname, _ := z.Member.(string)
		entries[i] = Entry{
			Nickname: nickname,
			Score:    int(z.Score),
			Rank:     i + 1,
		}
	}
	return entries, nil
}

// GetRank returns a participant's 1-indexed rank, -1 when unranked.
func (l *Leaderboard) GetRank(ctx context.Context, sessionCode, nickname string) (int64, error) {
	rank, err := l.client.ZRevRank(ctx, l.key(sessionCode), nickname).Result()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return rank + 1, nil
}

// Reset clears a session's leaderboard.
func (l *Leaderboard) Reset(ctx context.Context, sessionCode string) error {
	return l.client.Del(ctx, l.key(sessionCode)).Err()
}
