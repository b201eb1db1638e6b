package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLockTTL         = 45 * time.Second
	renewalTimeout         = 5 * time.Second
	minRenewalInterval     = time.Second
	defaultRenewalFraction = 3
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock held by another run")

var (
	lockCounter atomic.Uint64

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)
)

// LockKey names the publish lock for one remote file.
func LockKey(repository, path string) string {
	return fmt.Sprintf("ipsift:lock:%s/%s", repository, path)
}

// WithLock takes key with a single SETNX attempt and runs fn while holding
// it. The lock is renewed in the background and released when fn returns.
// The context passed to fn is cancelled if the lock is lost.
func WithLock(ctx context.Context, client *redis.Client, key string, ttl time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("support: lock function cannot be nil")
	}
	if client == nil {
		return errors.New("support: lock redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}

	session, err := acquireLock(ctx, client, key, ttl)
	if err != nil {
		return err
	}
	defer session.Close()

	log.Debug("lock: acquired", "key", key)
	return fn(session.ctx)
}

type lockSession struct {
	client    *redis.Client
	key       string
	value     string
	ttl       time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	stopRenew chan struct{}
	closeOnce sync.Once
}

func acquireLock(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*lockSession, error) {
	value := generateHolderID()

	ok, err := client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("support: lock %s: %w", key, err)
	}
	if !ok {
		holder, _ := client.Get(ctx, key).Result()
		return nil, fmt.Errorf("%w: %s (holder %q)", ErrLockHeld, key, holder)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	session := &lockSession{
		client:    client,
		key:       key,
		value:     value,
		ttl:       ttl,
		ctx:       sessionCtx,
		cancel:    cancel,
		stopRenew: make(chan struct{}),
	}
	go session.renewLoop()
	return session, nil
}

func (ls *lockSession) Close() {
	ls.closeOnce.Do(func() {
		close(ls.stopRenew)
		ls.cancel()
		if err := ls.releaseLock(); err != nil {
			log.Warn("lock: release failed", "key", ls.key, "error", err)
			return
		}
		log.Debug("lock: released", "key", ls.key)
	})
}

func (ls *lockSession) renewLoop() {
	interval := ls.ttl / defaultRenewalFraction
	if interval < minRenewalInterval {
		interval = minRenewalInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ls.stopRenew:
			return
		case <-ls.ctx.Done():
			return
		case <-ticker.C:
			if err := ls.renewLock(); err != nil {
				log.Warn("lock: renewal failed", "key", ls.key, "error", err)
				ls.cancel()
				return
			}
		}
	}
}

func (ls *lockSession) renewLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	res, err := renewScript.Run(ctx, ls.client, []string{ls.key}, ls.value, ls.ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}

	if updated, ok := res.(int64); ok && updated == 0 {
		return errors.New("lock lost")
	}

	return nil
}

func (ls *lockSession) releaseLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	_, err := releaseScript.Run(ctx, ls.client, []string{ls.key}, ls.value).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func generateHolderID() string {
	host, _ := os.Hostname()
	counter := lockCounter.Add(1)
	return fmt.Sprintf("%s-%d-%d-%d", host, os.Getpid(), time.Now().UnixNano(), counter)
}
