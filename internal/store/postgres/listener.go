package postgres

import (
	"context"
	"log"
	"time"

	"github.com/lib/pq"
)

// InvalidationChannel is the Postgres NOTIFY channel used to tell every
// process sharing the embedding cache that a species description
// changed and its cached vector is stale.
const InvalidationChannel = "embedding_cache_invalidate"

// CacheInvalidator is the subset of embedding.Cache the listener needs;
// narrowed so this package doesn't import embedding directly.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, key string)
}

// Listener relays Postgres LISTEN/NOTIFY traffic on InvalidationChannel
// into cache invalidations. It holds its own lib/pq connection rather
// than reusing the pgx pool that serves transactional writes, since a
// pooled connection can be handed back and recycled mid-LISTEN.
type Listener struct {
	pqListener *pq.Listener
	cache      CacheInvalidator
}

// NewListener opens a dedicated lib/pq listener connection against
// connString and subscribes to InvalidationChannel.
func NewListener(connString string, cache CacheInvalidator) *Listener {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("postgres listener: %v", err)
		}
	}
	l := pq.NewListener(connString, 10*time.Second, time.Minute, reportProblem)
	return &Listener{pqListener: l, cache: cache}
}

// Run subscribes and blocks, invalidating the cache for every notified
// lineage code until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.pqListener.Listen(InvalidationChannel); err != nil {
		return err
	}
	defer l.pqListener.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notification := <-l.pqListener.Notify:
			if notification == nil {
				continue
			}
			l.cache.Invalidate(ctx, notification.Extra)
		case <-time.After(90 * time.Second):
			go l.pqListener.Ping()
		}
	}
}

// notifyInvalidation publishes lineageCode on InvalidationChannel using the regular
// pgx pool — NOTIFY is a one-shot statement, not a long-lived LISTEN, so
// the pooled connection is fine here.
func (s *SpeciesStore) notifyInvalidation(ctx context.Context, lineageCode string) {
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, InvalidationChannel, lineageCode); err != nil {
		log.Printf("postgres: failed to notify cache invalidation for %s: %v", lineageCode, err)
	}
}
