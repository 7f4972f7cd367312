package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`

	// ShutdownTimeout bounds graceful shutdown. Open SSE streams are cut when it expires.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 10 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 15 * time.Second
	}
}

// CatalogConfig controls product catalog queries.
type CatalogConfig struct {
	QueryTimeout time.Duration `env:"CATALOG_QUERY_TIMEOUT" envDefault:"10s"`
}

// Sanitize restores the default timeout when unset.
func (c *CatalogConfig) Sanitize() {
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 10 * time.Second
	}
}
