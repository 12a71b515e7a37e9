package dbrouter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/uptrace/bun"

	"ms-booking/internal/logger"
)

// Handle names a replica the data layer can talk to.
type Handle string

const (
	HandlePrimary Handle = "primary"
	HandleMirror  Handle = "mirror"
)

// Operation distinguishes reads from writes. Both currently route the same
// way; the split is kept so read-only traffic can later be spread without
// touching callers.
type Operation string

const (
	OpRead  Operation = "read"
	OpWrite Operation = "write"
)

// CircuitKey marks the primary as down in the shared cache. While the key
// exists every process routes to the mirror without probing.
const CircuitKey = "db:primary_down"

// Reconciler is poked on a recovery edge (mirror back to primary). It must
// be cheap and must not block; deduplication is its problem.
type Reconciler interface {
	Trigger()
}

// Router picks the replica for every operation using a cache-backed circuit
// breaker: an open circuit short-cuts to the mirror, a short in-process memo
// throttles probing within request bursts, and an actual probe settles the
// rest. Pick never fails; when in doubt it answers with a usable handle.
type Router struct {
	Redis      *redis.Client
	Prober     Prober
	Logger     *logger.Logger
	Reconciler Reconciler

	CircuitTTL time.Duration
	MemoTTL    time.Duration
	Now        func() time.Time

	Primary *bun.DB
	Mirror  *bun.DB

	mu         sync.Mutex
	lastCheck  time.Time
	lastResult Handle
}

func NewRouter(rdb *redis.Client, prober Prober, log *logger.Logger, circuitTTL, memoTTL time.Duration) *Router {
	return &Router{
		Redis:      rdb,
		Prober:     prober,
		Logger:     log,
		CircuitTTL: circuitTTL,
		MemoTTL:    memoTTL,
		Now:        time.Now,
	}
}

// Pick returns the handle to use for one operation.
func (r *Router) Pick(ctx context.Context, op Operation) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.Now()

	// Circuit open → mirror, no probe. A redis failure here must not take
	// the request down with it, so it falls through to the memo/probe path.
	val, err := r.Redis.Get(ctx, CircuitKey).Result()
	if err == nil && val != "" {
		if r.lastResult != HandleMirror {
			r.Logger.LogRouter("CIRCUIT_OPEN", "primary marked down, routing to mirror")
			r.lastResult = HandleMirror
		}
		return HandleMirror
	}
	if err != nil && err != redis.Nil {
		r.Logger.Warn("DB_ROUTER", fmt.Sprintf("circuit cache unavailable: %v", err))
	}

	// Fresh memo → reuse the last decision instead of re-probing on every
	// query of the same request burst.
	if r.lastResult != "" && now.Sub(r.lastCheck) < r.MemoTTL {
		return r.lastResult
	}

	if perr := r.Prober.Probe(ctx); perr != nil {
		r.Logger.Error("DB_ROUTER", fmt.Sprintf("primary probe failed (%s), opening circuit for %s: %v",
			perr.Kind, r.CircuitTTL, perr.Err))

		if err := r.Redis.Set(ctx, CircuitKey, "1", r.CircuitTTL).Err(); err != nil {
			r.Logger.Warn("DB_ROUTER", fmt.Sprintf("failed to persist circuit state: %v", err))
		}

		r.lastCheck = now
		r.lastResult = HandleMirror
		return HandleMirror
	}

	if r.lastResult == HandleMirror {
		r.Logger.LogRouter("RECOVERY", "primary reachable again, triggering reconciliation")
		if r.Reconciler != nil {
			r.Reconciler.Trigger()
		}
	}

	r.lastCheck = now
	r.lastResult = HandlePrimary
	return HandlePrimary
}

// DB resolves Pick's handle to the bound bun connection.
func (r *Router) DB(ctx context.Context, op Operation) *bun.DB {
	if r.Pick(ctx, op) == HandleMirror {
		return r.Mirror
	}
	return r.Primary
}
