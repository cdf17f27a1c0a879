package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"fieldbook/internal/config"
)

// HTTPAuth проверяет API-ключи и лимиты запросов перед основным mux.
type HTTPAuth struct {
	cfg config.APIConfig

	clientsByAPIKey map[string]config.APIClientKey
	limiter         *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}

	return &HTTPAuth{
		cfg:             cfg,
		clientsByAPIKey: m,
		limiter:         newRateLimiter(cfg),
	}
}

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	permReadSchedule      = "read:schedule"
	permReadVenues        = "read:venues"
	permWriteReservations = "write:reservations"
	permExportSchedule    = "export:schedule"
	clientKeyUnknown      = "unknown"
)

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Auth.IsEnabled() {
			client, ok := a.checkAuth(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !a.checkPermissions(client, r) {
				writeError(w, http.StatusForbidden, "permission denied")
				return
			}
		}
		if !a.checkRateLimit(r) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) checkAuth(r *http.Request) (config.APIClientKey, bool) {
	apiKeyHeader := strings.TrimSpace(a.cfg.Auth.HeaderAPIKey)
	if apiKeyHeader == "" {
		apiKeyHeader = apiKeyHeaderDefault
	}
	extraHeader := strings.TrimSpace(a.cfg.Auth.HeaderExtra)
	if extraHeader == "" {
		extraHeader = apiExtraHeaderDefault
	}

	apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader))
	extra := strings.TrimSpace(r.Header.Get(extraHeader))
	if apiKey == "" || extra == "" {
		return config.APIClientKey{}, false
	}

	client, ok := a.clientsByAPIKey[apiKey]
	if !ok {
		return config.APIClientKey{}, false
	}

	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return config.APIClientKey{}, false
	}

	return client, true
}

func (a *HTTPAuth) checkPermissions(client config.APIClientKey, r *http.Request) bool {
	required := requiredPermission(r)
	if required == "" {
		return true
	}

	// Пустой список прав трактуем как allow-all.
	if len(client.Permissions) == 0 {
		return true
	}

	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return true
		}
	}
	return false
}

func requiredPermission(r *http.Request) string {
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/v1/reservations") && r.Method == http.MethodPost:
		return permWriteReservations
	case strings.HasPrefix(r.URL.Path, "/api/v1/venues/"):
		return permReadSchedule
	case r.URL.Path == "/api/v1/venues":
		return permReadVenues
	case strings.HasPrefix(r.URL.Path, "/api/v1/exports/"):
		return permExportSchedule
	default:
		return ""
	}
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) bool {
	if a.cfg.RateLimit.RPS <= 0 {
		return true
	}

	key := a.clientKey(r)
	return a.limiter.getLimiter(key).Allow()
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	apiKeyHeader := strings.TrimSpace(a.cfg.Auth.HeaderAPIKey)
	if apiKeyHeader == "" {
		apiKeyHeader = apiKeyHeaderDefault
	}
	if apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader)); apiKey != "" {
		return apiKey
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return clientKeyUnknown
}
