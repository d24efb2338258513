package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"uscview/config"
	"uscview/metrics"
	"uscview/models"
)

// DisplayMode indicates which backend holds the display container
type DisplayMode string

const (
	DisplayModeRedis    DisplayMode = "redis"
	DisplayModeInMemory DisplayMode = "in-memory"
)

// displayItem for in-memory fallback
type displayItem struct {
	Panel     models.Panel
	ExpiresAt time.Time
}

// DisplayStore is the named container the channel panel is written into.
// Every Replace overwrites the whole panel; there is no patching.
type DisplayStore struct {
	cfg *config.Config
	key string

	// Redis
	redis       *redis.Client
	redisCtx    context.Context
	redisCancel context.CancelFunc
	mode        DisplayMode
	modeMutex   sync.RWMutex

	// In-memory fallback
	memMutex sync.RWMutex
	mem      *displayItem

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewDisplayStore(cfg *config.Config) *DisplayStore {
	ctx, cancel := context.WithCancel(context.Background())

	ds := &DisplayStore{
		cfg:         cfg,
		key:         "display:" + cfg.Render.ContainerID,
		redisCtx:    ctx,
		redisCancel: cancel,
		stopChan:    make(chan struct{}),
		mode:        DisplayModeInMemory,
	}

	if cfg.Redis.Enabled {
		ds.connectRedis()
	} else {
		log.Info().Msg("Redis disabled in config, display container kept in memory")
	}
	metrics.SetDisplayRedis(ds.Mode() == DisplayModeRedis)

	return ds
}

// connectRedis attempts to connect to Redis
func (ds *DisplayStore) connectRedis() {
	if ds.cfg.Redis.Address == "" {
		log.Warn().Msg("Redis address not configured, display container kept in memory")
		return
	}

	options := &redis.Options{
		Addr:         ds.cfg.Redis.Address,
		Password:     ds.cfg.Redis.Password,
		DB:           ds.cfg.Redis.DB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     4,
		MinIdleConns: 1,
		MaxRetries:   3,
		PoolTimeout:  10 * time.Second,
	}

	if ds.cfg.Redis.UseTLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	ds.redis = redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ds.redis.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("address", ds.cfg.Redis.Address).Msg("Redis connection failed, running IN-MEMORY")
		ds.setMode(DisplayModeInMemory)
		return
	}

	log.Info().Str("address", ds.cfg.Redis.Address).Msg("Redis connected")
	ds.setMode(DisplayModeRedis)
}

func (ds *DisplayStore) setMode(mode DisplayMode) {
	ds.modeMutex.Lock()
	ds.mode = mode
	ds.modeMutex.Unlock()
	metrics.SetDisplayRedis(mode == DisplayModeRedis)
}

// Mode reports the active backend
func (ds *DisplayStore) Mode() DisplayMode {
	ds.modeMutex.RLock()
	defer ds.modeMutex.RUnlock()
	return ds.mode
}

// Start runs the Redis health loop
func (ds *DisplayStore) Start() {
	if ds.redis == nil {
		return
	}
	interval := ds.cfg.HealthCheckIntervalDuration()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go ds.runHealthCheckLoop(interval)
}

func (ds *DisplayStore) Stop() {
	ds.stopOnce.Do(func() {
		close(ds.stopChan)
		ds.redisCancel()
		if ds.redis != nil {
			ds.redis.Close()
		}
	})
}

func (ds *DisplayStore) runHealthCheckLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ds.checkRedisHealth()
		case <-ds.stopChan:
			return
		}
	}
}

// checkRedisHealth flips between Redis and memory as Redis comes and goes
func (ds *DisplayStore) checkRedisHealth() {
	if ds.redis == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ds.redisCtx, 2*time.Second)
	defer cancel()
	err := ds.redis.Ping(ctx).Err()

	switch mode := ds.Mode(); {
	case mode == DisplayModeRedis && err != nil:
		log.Warn().Err(err).Msg("Redis health check failed, switching to IN-MEMORY")
		ds.setMode(DisplayModeInMemory)
	case mode == DisplayModeInMemory && err == nil:
		log.Info().Msg("Redis reconnected, switching back to REDIS")
		ds.syncMemoryToRedis()
		ds.setMode(DisplayModeRedis)
	}
}

// syncMemoryToRedis copies the in-memory panel to Redis on reconnection
func (ds *DisplayStore) syncMemoryToRedis() {
	ds.memMutex.RLock()
	item := ds.mem
	ds.memMutex.RUnlock()

	if item == nil {
		return
	}
	if ttl := time.Until(item.ExpiresAt); ttl > 0 {
		if err := ds.setRedis(item.Panel, ttl); err != nil {
			log.Warn().Err(err).Msg("Failed to sync display container to Redis")
		}
	}
}

// Replace overwrites the container with panel
func (ds *DisplayStore) Replace(panel models.Panel) {
	ttl := ds.cfg.DisplayTTLDuration()
	if ttl <= 0 {
		ttl = time.Hour
	}

	if ds.Mode() == DisplayModeRedis {
		if err := ds.setRedis(panel, ttl); err != nil {
			log.Warn().Err(err).Str("key", ds.key).Msg("Redis SET failed, falling back to in-memory")
			ds.setMemory(panel, ttl)
		}
		return
	}
	ds.setMemory(panel, ttl)
}

// Current returns the panel in the container, if any
func (ds *DisplayStore) Current() (*models.Panel, bool) {
	if ds.Mode() == DisplayModeRedis {
		panel, found, err := ds.getRedis()
		if err == nil {
			return panel, found
		}
		log.Warn().Err(err).Str("key", ds.key).Msg("Redis GET failed, checking in-memory")
	}
	return ds.getMemory()
}

// Clear empties the container
func (ds *DisplayStore) Clear() error {
	var err error
	if ds.Mode() == DisplayModeRedis && ds.redis != nil {
		ctx, cancel := context.WithTimeout(ds.redisCtx, 5*time.Second)
		defer cancel()
		if delErr := ds.redis.Del(ctx, ds.key).Err(); delErr != nil {
			err = fmt.Errorf("redis delete %s: %w", ds.key, delErr)
		}
	}

	ds.memMutex.Lock()
	ds.mem = nil
	ds.memMutex.Unlock()

	log.Info().Str("key", ds.key).Msg("Display container cleared")
	return err
}

// Stats describes the container for the status endpoint
func (ds *DisplayStore) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"mode":          string(ds.Mode()),
		"redis_enabled": ds.cfg.Redis.Enabled,
		"key":           ds.key,
	}

	if panel, ok := ds.Current(); ok {
		stats["populated"] = true
		stats["rendered_at"] = panel.RenderedAt
		stats["channels"] = panel.Channels
		stats["sessions"] = panel.Sessions
	} else {
		stats["populated"] = false
	}

	if ds.Mode() == DisplayModeRedis && ds.redis != nil {
		ctx, cancel := context.WithTimeout(ds.redisCtx, 2*time.Second)
		defer cancel()
		if ttl, err := ds.redis.TTL(ctx, ds.key).Result(); err == nil {
			stats["ttl_seconds"] = int64(ttl.Seconds())
		}
	}

	return stats
}

// ============================================
// Redis Operations
// ============================================

func (ds *DisplayStore) setRedis(panel models.Panel, ttl time.Duration) error {
	if ds.redis == nil {
		return fmt.Errorf("redis client not initialized")
	}

	ctx, cancel := context.WithTimeout(ds.redisCtx, 2*time.Second)
	defer cancel()

	data, err := json.Marshal(panel)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return ds.redis.Set(ctx, ds.key, data, ttl).Err()
}

func (ds *DisplayStore) getRedis() (*models.Panel, bool, error) {
	if ds.redis == nil {
		return nil, false, fmt.Errorf("redis client not initialized")
	}

	ctx, cancel := context.WithTimeout(ds.redisCtx, 2*time.Second)
	defer cancel()

	data, err := ds.redis.Get(ctx, ds.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var panel models.Panel
	if err := json.Unmarshal(data, &panel); err != nil {
		return nil, false, fmt.Errorf("unmarshal %s: %w", ds.key, err)
	}
	return &panel, true, nil
}

// ============================================
// In-Memory Operations (Fallback)
// ============================================

func (ds *DisplayStore) setMemory(panel models.Panel, ttl time.Duration) {
	ds.memMutex.Lock()
	defer ds.memMutex.Unlock()
	ds.mem = &displayItem{Panel: panel, ExpiresAt: time.Now().Add(ttl)}
}

func (ds *DisplayStore) getMemory() (*models.Panel, bool) {
	ds.memMutex.RLock()
	defer ds.memMutex.RUnlock()

	if ds.mem == nil || time.Now().After(ds.mem.ExpiresAt) {
		return nil, false
	}
	panel := ds.mem.Panel
	return &panel, true
}
