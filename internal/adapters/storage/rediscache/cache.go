// Package rediscache keeps assembled board snapshots in Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hylla/minikan/internal/domain"
)

// BoardCache stores board snapshots under "board:<id>" with a TTL.
type BoardCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// New wraps client. A zero TTL disables writes, so every read misses.
func New(client *redis.Client, ttl time.Duration) *BoardCache {
	if ttl < 0 {
		ttl = 0
	}
	return &BoardCache{redis: client, ttl: ttl}
}

// Dial connects to addr and verifies the server answers PING.
func Dial(ctx context.Context, addr string, ttl time.Duration) (*BoardCache, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return New(client, ttl), nil
}

// Close closes the client.
func (c *BoardCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

// GetBoard returns a cached board. Undecodable entries are evicted and reported as a miss.
func (c *BoardCache) GetBoard(ctx context.Context, boardID string) (domain.Board, bool, error) {
	if c.redis == nil {
		return domain.Board{}, false, nil
	}
	data, err := c.redis.Get(ctx, boardKey(boardID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Board{}, false, nil
		}
		return domain.Board{}, false, err
	}
	var board domain.Board
	if err := json.Unmarshal(data, &board); err != nil {
		_ = c.redis.Del(ctx, boardKey(boardID)).Err()
		return domain.Board{}, false, nil
	}
	return board, true, nil
}

// SetBoard stores board until the TTL expires.
func (c *BoardCache) SetBoard(ctx context.Context, board domain.Board) error {
	if c.redis == nil || c.ttl == 0 {
		return nil
	}
	data, err := json.Marshal(board)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, boardKey(board.ID), data, c.ttl).Err()
}

// InvalidateBoard evicts a board.
func (c *BoardCache) InvalidateBoard(ctx context.Context, boardID string) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, boardKey(boardID)).Err()
}

func boardKey(boardID string) string {
	return "board:" + boardID
}
