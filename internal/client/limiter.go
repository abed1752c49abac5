package client

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdleTTL tempo sem uso após o qual o limiter de um token é descartado.
// Nesse ponto o balde já está cheio, então recriá-lo não muda a cota.
const limiterIdleTTL = time.Hour

// tokenLimiters mantém um rate.Limiter por access token.
// A cota do Linear é por usuário, então um usuário não consome a de outro.
type tokenLimiters struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	entries   map[string]*tokenLimiter
	lastSweep time.Time
	now       func() time.Time
}

type tokenLimiter struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

func newTokenLimiters(limit rate.Limit, burst int) *tokenLimiters {
	return &tokenLimiters{
		limit:     limit,
		burst:     burst,
		entries:   make(map[string]*tokenLimiter),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// get retorna o limiter do token, criando-o no primeiro uso
func (l *tokenLimiters) get(accessToken string) *rate.Limiter {
	key := limiterKey(accessToken)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= limiterIdleTTL {
		for k, e := range l.entries {
			if now.Sub(e.lastUsed) >= limiterIdleTTL {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[key]
	if !ok {
		e = &tokenLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastUsed = now

	return e.limiter
}

func (l *tokenLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// limiterKey evita guardar o token em claro
func limiterKey(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return hex.EncodeToString(sum[:12])
}
