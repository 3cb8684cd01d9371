// tracker-proxy exposes a local caching proxy in front of a remote
// issue tracker. GET requests under /tracker/ are forwarded through the
// client's response cache; cache statistics and invalidation are
// available over HTTP for operational tooling.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/ryancheley/youtrack-client/pkg/client"
	"github.com/ryancheley/youtrack-client/pkg/logging"
)

type config struct {
	Port      string        `env:"PORT" envDefault:"8080"`
	BaseURL   string        `env:"TRACKER_BASE_URL,required"`
	Token     string        `env:"TRACKER_TOKEN"`
	UserAgent string        `env:"USER_AGENT" envDefault:"youtrack-client/0.1.0"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	LogLevel  string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool          `env:"LOG_PRETTY" envDefault:"false"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse configuration")
	}

	logging.Setup(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	clientCfg := client.DefaultConfig()
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.Token = cfg.Token
	clientCfg.UserAgent = cfg.UserAgent

	mgr, err := client.New(clientCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create tracker client")
	}
	defer mgr.Close()

	http.HandleFunc("/health", healthHandler)
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/cache/stats", cacheStatsHandler(mgr))
	http.HandleFunc("/cache/invalidate", cacheInvalidateHandler(mgr))
	http.HandleFunc("/tracker/", trackerProxyHandler(mgr, cfg.CacheTTL))

	addr := ":" + cfg.Port
	log.Info().
		Str("addr", addr).
		Str("base_url", cfg.BaseURL).
		Dur("cache_ttl", cfg.CacheTTL).
		Msg("Starting tracker proxy")

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// cacheStatsHandler reports cache counters as JSON.
func cacheStatsHandler(mgr *client.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(mgr.Cache().Stats()); err != nil {
			log.Warn().Err(err).Msg("Failed to encode cache stats")
		}
	}
}

// cacheInvalidateHandler removes cached entries matching a glob pattern
// or a tag: POST /cache/invalidate?pattern=*issues* or ?tag=projects.
func cacheInvalidateHandler(mgr *client.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var removed int
		switch {
		case r.URL.Query().Get("pattern") != "":
			removed = mgr.Cache().InvalidatePattern(r.URL.Query().Get("pattern"))
		case r.URL.Query().Get("tag") != "":
			removed = mgr.Cache().InvalidateByTag(r.URL.Query().Get("tag"))
		default:
			http.Error(w, "pattern or tag query parameter required", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"removed": %d}`+"\n", removed)
	}
}

// trackerProxyHandler forwards GET requests to the tracker through the
// response cache. Example: /tracker/api/issues/DEMO-1 -> /api/issues/DEMO-1.
func trackerProxyHandler(mgr *client.Manager, cacheTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "only GET requests are proxied", http.StatusMethodNotAllowed)
			return
		}

		endpoint := strings.TrimPrefix(r.URL.Path, "/tracker")
		if r.URL.RawQuery != "" {
			endpoint += "?" + r.URL.RawQuery
		}

		resp, err := mgr.CachedRequest(r.Context(), http.MethodGet, endpoint,
			client.WithCacheTTL(cacheTTL))
		if err != nil {
			http.Error(w, fmt.Sprintf("tracker request failed: %v", err), statusFor(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.FromCache {
			w.Header().Set("X-Cache", "HIT")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := w.Write(resp.Body); err != nil {
			log.Warn().Err(err).Msg("Failed to write proxied response")
		}
	}
}

// statusFor maps a client error to the status the proxy reports.
func statusFor(err error) int {
	switch {
	case errors.As(err, new(*client.AuthenticationError)):
		return http.StatusUnauthorized
	case errors.As(err, new(*client.PermissionError)):
		return http.StatusForbidden
	case errors.As(err, new(*client.NotFoundError)):
		return http.StatusNotFound
	case errors.As(err, new(*client.RateLimitError)):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
