package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	indexKey    = "flags:index"
	valuePrefix = "flags:"
)

// KeyPattern is the accepted shape of a flag key.
const KeyPattern = `^[a-zA-Z0-9._-]{1,128}$`

var keyRe = regexp.MustCompile(KeyPattern)

// Store keeps boolean operator flags in Redis, indexed by a set of keys.
type Store struct {
	client redis.Cmdable
	logger *logrus.Logger
	now    func() time.Time
}

func NewStore(client redis.Cmdable, logger *logrus.Logger) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{client: client, logger: logger, now: time.Now}, nil
}

// ValidateKey returns ErrInvalidKey unless key matches KeyPattern.
func ValidateKey(key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, key string, value bool) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	flag := &Flag{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	b, err := json.Marshal(flag)
	if err != nil {
		return nil, fmt.Errorf("marshal flag: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, flagKey(key), b, 0)
	pipe.SAdd(ctx, indexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("upsert flag: %w", err)
	}

	return flag, nil
}

func (s *Store) Get(ctx context.Context, key string) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	val, err := s.client.Get(ctx, flagKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flag: %w", err)
	}

	var f Flag
	if err := json.Unmarshal([]byte(val), &f); err != nil {
		return nil, fmt.Errorf("unmarshal flag: %w", err)
	}
	return &f, nil
}

func (s *Store) List(ctx context.Context) ([]*Flag, error) {
	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list flags index: %w", err)
	}
	if len(keys) == 0 {
		return []*Flag{}, nil
	}

	redisKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := ValidateKey(k); err != nil {
			continue
		}
		redisKeys = append(redisKeys, flagKey(k))
	}
	if len(redisKeys) == 0 {
		return []*Flag{}, nil
	}

	vals, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget flags: %w", err)
	}

	out := make([]*Flag, 0, len(vals))
	for _, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		var f Flag
		if err := json.Unmarshal([]byte(s), &f); err != nil {
			continue
		}
		out = append(out, &f)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, flagKey(key))
	pipe.SRem(ctx, indexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete flag: %w", err)
	}

	return nil
}

// ProviderDisabled reports whether the provider's kill switch is on. Lookup errors
// leave the provider enabled so a Redis outage never removes upstreams.
func (s *Store) ProviderDisabled(ctx context.Context, provider string) bool {
	f, err := s.Get(ctx, ProviderKey(provider))
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		s.logger.WithError(err).WithField("provider", provider).Warn("flag lookup failed, provider stays enabled")
		return false
	}
	return f.Value
}

// SetProviderDisabled flips a provider's kill switch.
func (s *Store) SetProviderDisabled(ctx context.Context, provider string, disabled bool) (*Flag, error) {
	return s.Upsert(ctx, ProviderKey(provider), disabled)
}

// DisabledProviders lists providers whose kill switch is on.
func (s *Store) DisabledProviders(ctx context.Context) ([]string, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range all {
		if name, ok := ProviderFromKey(f.Key); ok && f.Value {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func flagKey(key string) string {
	return valuePrefix + key
}
