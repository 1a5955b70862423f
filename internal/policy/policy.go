// Package policy loads the rate-limit policy file and builds the named limiters
// the HTTP routes use.
package policy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/medfix-io/medfix/internal/config"
	"github.com/medfix-io/medfix/internal/ratelimit"
)

// DefaultFile is read when MEDFIX_POLICY_FILE is unset.
const DefaultFile = ".medfix.yaml"

// Limit names.
const (
	Public       = "public"
	AdminWrite   = "admin_write"
	UserWrite    = "user_write"
	Registration = "registration"
	Login        = "login"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

const redisPingTimeout = 5 * time.Second

var (
	// ErrUnknownLimit is returned for a limit name the routes do not use.
	ErrUnknownLimit = errors.New("unknown limit name")
	// ErrUnknownStore is returned for a store backend other than memory or redis.
	ErrUnknownStore = errors.New("unknown rate-limit store")
	// ErrRedisURLEmpty is returned when the redis backend has no URL.
	ErrRedisURLEmpty = errors.New("redis_url is required for the redis store")
)

type (
	// StoreConfig selects where rate-limit buckets live.
	StoreConfig struct {
		Backend  string `yaml:"backend"`
		RedisURL string `yaml:"redis_url"`
		Prefix   string `yaml:"prefix"`

		ratelimit.MemoryConfig `yaml:",inline"`
	}

	// Policy is the parsed policy file.
	Policy struct {
		Store  StoreConfig                 `yaml:"store"`
		Limits map[string]ratelimit.Config `yaml:"limits"`
	}

	// Limiters holds one limiter per route class, all sharing one store.
	Limiters struct {
		Public       *ratelimit.Limiter
		AdminWrite   *ratelimit.Limiter
		UserWrite    *ratelimit.Limiter
		Registration *ratelimit.Limiter
		Login        *ratelimit.Limiter

		closers []func() error
	}
)

// Default returns the built-in policy.
func Default() Policy {
	return Policy{
		Store: StoreConfig{Backend: StoreMemory},
		Limits: map[string]ratelimit.Config{
			Public:       {MaxRequests: ratelimit.DefaultMaxRequests, Window: ratelimit.DefaultWindow},
			AdminWrite:   {MaxRequests: 10, Window: time.Minute},
			UserWrite:    {MaxRequests: 20, Window: time.Minute},
			Registration: {MaxRequests: 3, Window: 10 * time.Minute},
			Login:        {MaxRequests: 5, Window: time.Minute},
		},
	}
}

// Load reads the policy file named by MEDFIX_POLICY_FILE, or DefaultFile.
func Load() (Policy, error) {
	return LoadFile(config.GetEnvStr("MEDFIX_POLICY_FILE", DefaultFile))
}

// LoadFile reads path and overlays it on Default. A missing file yields the
// defaults. A malformed file, an unknown limit name or an unknown store is an error.
func LoadFile(path string) (Policy, error) {
	p := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}

	if err != nil {
		return p, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse overlays the YAML document in data on Default. A limit that sets only
// one of max_requests and window keeps the default for the other.
func Parse(data []byte) (Policy, error) {
	p := Default()

	var file Policy
	if err := yaml.Unmarshal(data, &file); err != nil {
		return p, fmt.Errorf("failed to parse policy: %w", err)
	}

	for name, limit := range file.Limits {
		base, ok := p.Limits[name]
		if !ok {
			return p, fmt.Errorf("%w: %q", ErrUnknownLimit, name)
		}

		p.Limits[name] = merge(base, limit)
	}

	if file.Store.Backend != "" {
		p.Store.Backend = strings.ToLower(file.Store.Backend)
	}

	p.Store.RedisURL = file.Store.RedisURL
	p.Store.Prefix = file.Store.Prefix
	p.Store.MemoryConfig = file.Store.MemoryConfig

	if err := p.Validate(); err != nil {
		return p, err
	}

	return p, nil
}

// merge overlays the non-zero fields of override on base.
func merge(base, override ratelimit.Config) ratelimit.Config {
	if override.MaxRequests > 0 {
		base.MaxRequests = override.MaxRequests
	}

	if override.Window > 0 {
		base.Window = override.Window
	}

	return base
}

// Validate checks the store settings.
func (p Policy) Validate() error {
	switch p.Store.Backend {
	case StoreMemory:
		return nil
	case StoreRedis:
		if p.Store.RedisURL == "" {
			return ErrRedisURLEmpty
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStore, p.Store.Backend)
	}
}

// Build creates the bucket store and one limiter per route class.
func Build(ctx context.Context, p Policy, logger *slog.Logger) (*Limiters, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	store, closer, err := newStore(ctx, p.Store, logger)
	if err != nil {
		return nil, err
	}

	l := &Limiters{
		Public:       ratelimit.NewLimiter(Public, p.Limits[Public], store),
		AdminWrite:   ratelimit.NewLimiter(AdminWrite, p.Limits[AdminWrite], store),
		UserWrite:    ratelimit.NewLimiter(UserWrite, p.Limits[UserWrite], store),
		Registration: ratelimit.NewLimiter(Registration, p.Limits[Registration], store),
		Login:        ratelimit.NewLimiter(Login, p.Limits[Login], store),
		closers:      []func() error{closer},
	}

	logger.Info("Rate limiters ready",
		slog.String("store", p.Store.Backend),
		slog.Int("public_max", l.Public.MaxRequests()),
		slog.Duration("public_window", l.Public.Window()))

	return l, nil
}

// Close releases the shared store.
func (l *Limiters) Close() error {
	var errs []error

	for _, closeFn := range l.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func newStore(ctx context.Context, cfg StoreConfig, logger *slog.Logger) (ratelimit.Store, func() error, error) {
	if cfg.Backend == StoreRedis {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis_url: %w", err)
		}

		rdb := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()

		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()

			return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
		}

		var redisOpts []ratelimit.RedisOption
		if cfg.Prefix != "" {
			redisOpts = append(redisOpts, ratelimit.WithRedisPrefix(cfg.Prefix))
		}

		return ratelimit.NewRedisStore(rdb, redisOpts...), rdb.Close, nil
	}

	store, err := ratelimit.NewMemoryStore(cfg.MemoryConfig, logger)
	if err != nil {
		return nil, nil, err
	}

	return store, store.Close, nil
}
