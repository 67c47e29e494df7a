package redisstore

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shopnex/helpdesk/internal/chat"
)

const (
	onlineAgentsKey = "support:agents:online"
	onlineTTL       = 24 * time.Hour
)

// Store mirrors agent presence into Redis so other instances and the
// REST surface can read the online roster without hitting MySQL.
type Store struct {
	client *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

// OnlineAgent is the roster entry stored per agent.
type OnlineAgent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

func (s *Store) SetOnline(ctx context.Context, a chat.Agent) error {
	entry, err := json.Marshal(OnlineAgent{
		ID:     a.ID,
		Name:   a.Name,
		Email:  a.Email,
		Status: string(a.Status),
	})
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, onlineAgentsKey, a.ID, entry).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, onlineAgentsKey, onlineTTL).Err()
}

func (s *Store) SetOffline(ctx context.Context, agentID string) error {
	return s.client.HDel(ctx, onlineAgentsKey, agentID).Err()
}

func (s *Store) OnlineAgents(ctx context.Context) ([]OnlineAgent, error) {
	entries, err := s.client.HGetAll(ctx, onlineAgentsKey).Result()
	if err != nil {
		return nil, err
	}
	agents := make([]OnlineAgent, 0, len(entries))
	for _, raw := range entries {
		var a OnlineAgent
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			log.Printf("[redisstore] bad roster entry: %v", err)
			continue
		}
		agents = append(agents, a)
	}
	return agents, nil
}
