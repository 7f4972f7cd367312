package config

import "time"

// SessionConfig controls the session store and its collaborators.
type SessionConfig struct {
	// CallTimeout bounds every identity provider and profile store call.
	CallTimeout time.Duration `env:"SESSION_CALL_TIMEOUT" envDefault:"10s"`

	// Persist stores the provider session in Redis so restarts and other
	// processes sharing the key see the same sign-in.
	Persist  bool   `env:"SESSION_PERSIST"   envDefault:"true"`
	RedisKey string `env:"SESSION_REDIS_KEY" envDefault:"catalog-admin:session"`

	// ProfileCacheTTL is how long resolved profiles stay in Redis. Zero disables the cache.
	ProfileCacheTTL time.Duration `env:"SESSION_PROFILE_CACHE_TTL" envDefault:"5m"`
}

const maxCallTimeout = 2 * time.Minute

// Sanitize clamps the call timeout so loading can never hang indefinitely.
func (s *SessionConfig) Sanitize() {
	if s.CallTimeout <= 0 {
		s.CallTimeout = 10 * time.Second
	}
	if s.CallTimeout > maxCallTimeout {
		s.CallTimeout = maxCallTimeout
	}
	if s.ProfileCacheTTL < 0 {
		s.ProfileCacheTTL = 0
	}
}
