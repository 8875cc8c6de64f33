package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/fleetclock/fleetclock/internal/directions"
)

// keyPrefix namespaces directions entries in a shared Valkey instance.
const keyPrefix = "directions:"

var errKeyMissing = errors.New("key missing")

// kv is the subset of Valkey commands ValkeyStore needs.
type kv interface {
	get(ctx context.Context, key string) ([]byte, error)
	set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// valkeyEntry is the stored value; Valkey expires the key itself.
type valkeyEntry struct {
	Provider  string        `json:"provider"`
	FetchedAt time.Time     `json:"fetched_at"`
	Routes    [][]storedLeg `json:"routes"`
}

// ValkeyStore is a Store backed by Valkey (Redis-compatible).
type ValkeyStore struct {
	kv     kv
	client valkey.Client
	now    func() time.Time
}

// NewValkeyStore connects to the Valkey server at addr.
func NewValkeyStore(addr string) (*ValkeyStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &ValkeyStore{kv: valkeyKV{client: client}, client: client, now: time.Now}, nil
}

// Get implements Store.
func (s *ValkeyStore) Get(ctx context.Context, key string) (*directions.Response, bool, error) {
	raw, err := s.kv.get(ctx, keyPrefix+key)
	if errors.Is(err, errKeyMissing) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("valkey get: %w", err)
	}

	var entry valkeyEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("decode cached routes: %w", err)
	}

	return &directions.Response{
		StatusCode: http.StatusOK,
		Provider:   entry.Provider,
		FetchedAt:  entry.FetchedAt,
		Routes:     decodeRoutes(entry.Routes),
	}, true, nil
}

// Put implements Store.
func (s *ValkeyStore) Put(ctx context.Context, key string, resp *directions.Response, ttl time.Duration) error {
	fetchedAt := resp.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = s.now()
	}

	value, err := json.Marshal(valkeyEntry{
		Provider:  resp.Provider,
		FetchedAt: fetchedAt,
		Routes:    encodeRoutes(resp.Routes),
	})
	if err != nil {
		return fmt.Errorf("encode routes: %w", err)
	}

	if err := s.kv.set(ctx, keyPrefix+key, value, ttl); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

// Ping checks that the server answers.
func (s *ValkeyStore) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (s *ValkeyStore) Close() {
	s.client.Close()
}

type valkeyKV struct {
	client valkey.Client
}

func (v valkeyKV) get(ctx context.Context, key string) ([]byte, error) {
	b, err := v.client.Do(ctx, v.client.B().Get().Key(key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, errKeyMissing
	}
	return b, err
}

func (v valkeyKV) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return v.client.Do(ctx, v.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Ex(ttl).Build()).Error()
}
