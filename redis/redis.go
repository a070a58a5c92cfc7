package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fitaccessng/qring-backend/config"
	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(cfg *config.RedisConfig) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("redis client connection test failed: %w", err)
	}

	return &RedisClient{Client: client}, nil
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}

// Occupant is one live connection inside a session room, as mirrored
// to redis for the occupancy endpoints. The in-process room table
// stays authoritative; the mirror just survives a lookup from HTTP.
type Occupant struct {
	ConnID      string `json:"conn_id"`
	UserID      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name"`
}

func occupancyKey(sessionID string) string {
	return fmt.Sprintf("gateway:session:%s:online", sessionID)
}

func (r *RedisClient) AddOccupant(ctx context.Context, sessionID string, occ Occupant) error {
	key := occupancyKey(sessionID)
	data, err := json.Marshal(occ)
	if err != nil {
		return err
	}
	if err := r.Client.HSet(ctx, key, occ.ConnID, data).Err(); err != nil {
		return err
	}
	// Rooms are ephemeral; let stale mirrors age out.
	return r.Client.Expire(ctx, key, 24*time.Hour).Err()
}

func (r *RedisClient) RemoveOccupant(ctx context.Context, sessionID, connID string) error {
	return r.Client.HDel(ctx, occupancyKey(sessionID), connID).Err()
}

func (r *RedisClient) Occupants(ctx context.Context, sessionID string) ([]Occupant, error) {
	result, err := r.Client.HGetAll(ctx, occupancyKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	occupants := make([]Occupant, 0, len(result))
	for _, data := range result {
		var occ Occupant
		if err := json.Unmarshal([]byte(data), &occ); err != nil {
			continue
		}
		occupants = append(occupants, occ)
	}
	return occupants, nil
}
