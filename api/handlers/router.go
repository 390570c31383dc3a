package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/auth"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/bridge"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/middleware"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/prometheus"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/system"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/websocket"
	"github.com/AnalyseDeCircuit/gpu-detect/pkg/types"
	"github.com/klauspost/compress/gzhttp"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// Deps 路由依赖
type Deps struct {
	Bridge  *bridge.Bridge
	Backend string
	// Capacity is the buffer size used when a request names none.
	Capacity int
	// Auth may be nil, which leaves every route public.
	Auth    *auth.Authenticator
	Metrics *prometheus.Metrics
	Hub     *websocket.Hub
	// WS serves /ws/report; nil disables the route.
	WS      http.Handler
	Limiter *middleware.RateLimiter
	Version string
	Logger  *slog.Logger
	// HostInfo overrides the gopsutil lookup, mainly for tests.
	HostInfo func() (*types.HostInfo, error)
}

// Router 封装HTTP路由器
type Router struct {
	mux      *http.ServeMux
	deps     Deps
	logger   *slog.Logger
	hostInfo func() (*types.HostInfo, error)
}

// NewRouter 创建路由器并注册所有路由
func NewRouter(deps Deps) *Router {
	if deps.Capacity == 0 {
		deps.Capacity = bridge.SizeLarge
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hostInfo := deps.HostInfo
	if hostInfo == nil {
		hostInfo = system.HostInfo
	}
	router := &Router{
		mux:      http.NewServeMux(),
		deps:     deps,
		logger:   logger,
		hostInfo: hostInfo,
	}

	// 认证路由
	router.mux.HandleFunc("/api/token", router.TokenHandler)
	router.mux.HandleFunc("/api/token/revoke", router.RevokeHandler)

	// 报告路由
	router.mux.HandleFunc("/api/report", router.ReportHandler)
	router.mux.HandleFunc("/api/backends", router.BackendsHandler)
	router.mux.HandleFunc("/api/health", router.HealthCheckHandler)

	if deps.Metrics != nil {
		router.mux.Handle("/metrics", deps.Metrics.Handler())
	}

	// WebSocket路由
	if deps.WS != nil {
		router.mux.Handle("/ws/report", deps.WS)
	}

	// Swagger API文档
	router.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	return router
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func (rt *Router) wrapWithAPIAuthorization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Prevent large request bodies from exhausting memory.
		if strings.HasPrefix(path, "/api/") {
			const maxAPIRequestBodyBytes int64 = 64 << 10
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				if r.ContentLength > maxAPIRequestBodyBytes {
					writeJSONError(w, http.StatusRequestEntityTooLarge, "Request body too large")
					return
				}
				if r.Body != nil {
					r.Body = http.MaxBytesReader(w, r.Body, maxAPIRequestBodyBytes)
				}
			}
		}

		if rt.deps.Auth != nil && strings.HasPrefix(path, "/api/") {
			// Public endpoints
			switch path {
			case "/api/token", "/api/health", "/api/backends":
				next.ServeHTTP(w, r)
				return
			}

			token := middleware.BearerToken(r)
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if _, err := rt.deps.Auth.Validate(token); err != nil {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// compressExceptWS gzips every route but the WebSocket upgrade.
func compressExceptWS(next http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/ws/") {
			next.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

// Handler 返回包装了全部中间件的 HTTP Handler
func (rt *Router) Handler() http.Handler {
	var h http.Handler = rt.wrapWithAPIAuthorization(rt.mux)
	h = compressExceptWS(h)
	if rt.deps.Limiter != nil {
		h = middleware.RateLimitMiddleware(rt.deps.Limiter, middleware.IPBasedKey)(h)
	}
	h = securityHeaders(h)
	h = middleware.AccessLog(rt.logger)(h)
	return middleware.RequestID(h)
}

// Server 返回带超时设置的 http.Server
func (rt *Router) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           rt.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
