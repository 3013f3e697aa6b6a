package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hamed0406/apihealth/internal/domain"
	"github.com/hamed0406/apihealth/internal/repo"
)

var _ repo.StateStore = (*Store)(nil)

const stateKeyPrefix = "apihealth:state:"

type Options struct {
	Addr     string
	Password string
	DB       int
}

func NewClient(o Options) *redis.Client {
	addr := o.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: o.Password,
		DB:       o.DB,
	})
}

// Store saves each HealthRecord as a JSON string without expiry.
type Store struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func (s *Store) key(endpointID string) string {
	return stateKeyPrefix + endpointID
}

func (s *Store) Get(ctx context.Context, endpointID string) (*domain.HealthRecord, error) {
	if endpointID == "" {
		return nil, fmt.Errorf("redis state: empty endpoint id")
	}
	b, err := s.client.Get(ctx, s.key(endpointID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", endpointID, err)
	}

	var row repo.StateRow
	if err := json.Unmarshal(b, &row); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", endpointID, err)
	}
	return row.Record()
}

func (s *Store) Put(ctx context.Context, rec *domain.HealthRecord) error {
	if rec == nil || rec.EndpointID == "" {
		return fmt.Errorf("redis state: empty endpoint id")
	}
	b, err := json.Marshal(repo.NewStateRow(rec))
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(rec.EndpointID), b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", rec.EndpointID, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
