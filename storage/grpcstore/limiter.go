package grpcstore

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PeerLimiter applies a token bucket per peer and periodically evicts idle
// entries.
type PeerLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu     sync.Mutex
	byPeer map[string]*peerEntry
	hits   uint64
}

type peerEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewPeerLimiter returns nil when rps or burst is not positive; a nil
// limiter allows everything.
func NewPeerLimiter(rps float64, burst int, idleTTL time.Duration) *PeerLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &PeerLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		byPeer:  make(map[string]*peerEntry),
	}
}

// Allow reports whether one request from peer may proceed at now.
func (l *PeerLimiter) Allow(peer string, now time.Time) bool {
	if l == nil {
		return true
	}
	peer = strings.TrimSpace(peer)

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byPeer[peer]
	if !ok {
		e = &peerEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byPeer[peer] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byPeer {
			if v.lastSeen.Before(cutoff) {
				delete(l.byPeer, k)
			}
		}
	}
	return allowed
}
