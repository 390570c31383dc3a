package handlers

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/auth"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/bridge"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/codec"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu/fixture"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/middleware"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/prometheus"
	"github.com/AnalyseDeCircuit/gpu-detect/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const sample = `
adapters:
  - name: Intel UHD Graphics 770
    unified: true
  - name: RTX 4090
`

const wantText = "INTEGRATED : Intel UHD Graphics 770\nDEDICATED : RTX 4090\n"

func newRouter(t *testing.T, yamlText string, mod func(*Deps)) *Router {
	t.Helper()
	api, err := fixture.Parse([]byte(yamlText))
	require.NoError(t, err)
	b, err := bridge.New(api, bridge.MaxUnits)
	require.NoError(t, err)

	deps := Deps{
		Bridge:   b,
		Backend:  "fixture",
		Capacity: bridge.SizeSmall,
		Version:  "test",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		HostInfo: func() (*types.HostInfo, error) {
			return &types.HostInfo{Hostname: "render-01", OS: "linux"}, nil
		},
	}
	if mod != nil {
		mod(&deps)
	}
	return NewRouter(deps)
}

func do(h http.Handler, method, target string, header http.Header, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestReportHandler(t *testing.T) {
	h := newRouter(t, sample, nil).Handler()

	tests := []struct {
		name       string
		target     string
		accept     string
		wantStatus int
		wantType   string
		wantBody   string
	}{
		{name: "纯文本", target: "/api/report", wantStatus: http.StatusOK, wantType: "text/plain; charset=utf-8", wantBody: wantText},
		{name: "指定容量", target: "/api/report?capacity=40", wantStatus: http.StatusOK, wantType: "text/plain; charset=utf-8", wantBody: "INTEGRATED : Intel UHD Graphics 770\n"},
		{name: "最小容量", target: "/api/report?capacity=2", wantStatus: http.StatusOK, wantType: "text/plain; charset=utf-8", wantBody: ""},
		{name: "容量过小", target: "/api/report?capacity=1", wantStatus: http.StatusBadRequest, wantType: "application/json"},
		{name: "容量过大", target: "/api/report?capacity=2000000", wantStatus: http.StatusBadRequest, wantType: "application/json"},
		{name: "容量非数字", target: "/api/report?capacity=big", wantStatus: http.StatusBadRequest, wantType: "application/json"},
		{name: "不支持的 Accept", target: "/api/report", accept: "application/xml", wantStatus: http.StatusOK, wantType: "text/plain; charset=utf-8", wantBody: wantText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.accept != "" {
				header.Set("Accept", tt.accept)
			}
			rec := do(h, http.MethodGet, tt.target, header, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantType, rec.Header().Get("Content-Type"))
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestReportJSON(t *testing.T) {
	h := newRouter(t, sample, nil).Handler()

	rec := do(h, http.MethodGet, "/api/report?capacity=40&host=true", http.Header{"Accept": {"application/json"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-Report-Truncated"))

	var resp types.ReportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INTEGRATED : Intel UHD Graphics 770\n", resp.Text)
	assert.Equal(t, 40, resp.Capacity)
	assert.True(t, resp.Truncated)
	assert.Equal(t, 1, resp.Integrated)
	assert.Equal(t, 0, resp.Dedicated)
	assert.Equal(t, "fixture", resp.Backend)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, rec.Header().Get(middleware.RequestIDHeader), resp.RequestID)
	require.NotNil(t, resp.Host)
	assert.Equal(t, "render-01", resp.Host.Hostname)
}

func TestReportCBOR(t *testing.T) {
	h := newRouter(t, sample, nil).Handler()

	rec := do(h, http.MethodGet, "/api/report", http.Header{"Accept": {"application/cbor"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, codec.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "false", rec.Header().Get("X-Report-Truncated"))

	var resp struct {
		Text       string `json:"text"`
		Integrated int    `json:"integrated"`
		Dedicated  int    `json:"dedicated"`
		Host       any    `json:"host"`
	}
	require.NoError(t, codec.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, wantText, resp.Text)
	assert.Equal(t, 1, resp.Integrated)
	assert.Equal(t, 1, resp.Dedicated)
	assert.Nil(t, resp.Host)
}

func TestReportFatalStage(t *testing.T) {
	h := newRouter(t, "fatal:\n  stage: DXGI factory creation\n  code: 0x887a0004\n", nil).Handler()

	rec := do(h, http.MethodGet, "/api/report", http.Header{"Accept": {"application/json"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.ReportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Error: DXGI factory creation failed (0x887a0004)\n", resp.Text)
	assert.Equal(t, "DXGI factory creation", resp.FatalStage)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newRouter(t, sample, nil).Handler()

	for _, target := range []string{"/api/report", "/api/backends", "/api/token/revoke"} {
		method := http.MethodPost
		if target == "/api/token/revoke" {
			method = http.MethodGet
		}
		rec := do(h, method, target, nil, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, target)
	}
}

func TestBackendsHandler(t *testing.T) {
	h := newRouter(t, sample, nil).Handler()

	rec := do(h, http.MethodGet, "/api/backends", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []types.BackendInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	active := 0
	for _, b := range list {
		if b.Active {
			active++
			assert.Equal(t, "fixture", b.Name)
		}
	}
	assert.Equal(t, 1, active)
}

func TestHealthAndMetrics(t *testing.T) {
	m := prometheus.New("test")
	r := newRouter(t, sample, func(d *Deps) { d.Metrics = m })
	r.deps.Bridge.Observe = m.Observe
	h := r.Handler()

	rec := do(h, http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health types.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "fixture", health.Backend)

	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/report", nil, nil).Code)

	rec = do(h, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gpu_detect_reports_total{outcome="ok"} 1`)
}

func TestAuthorization(t *testing.T) {
	hash, err := auth.HashAPIKey("s3cret-key")
	require.NoError(t, err)
	a, err := auth.New(strings.Repeat("k", 32), hash)
	require.NoError(t, err)
	h := newRouter(t, sample, func(d *Deps) { d.Auth = a }).Handler()

	// Public endpoints stay open.
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/health", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/report", nil, nil).Code)

	rec := do(h, http.MethodPost, "/api/token", nil, strings.NewReader(`{"api_key":"wrong"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPost, "/api/token", nil, strings.NewReader(`{"api_key":"s3cret-key"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var tok types.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.Token)

	bearer := http.Header{"Authorization": {"Bearer " + tok.Token}}
	rec = do(h, http.MethodGet, "/api/report", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wantText, rec.Body.String())

	cookie := http.Header{"Cookie": {"auth_token=" + tok.Token}}
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/report", cookie, nil).Code)

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/token/revoke", bearer, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/report", bearer, nil).Code)
}

func TestTokenDisabled(t *testing.T) {
	h := newRouter(t, sample, nil).Handler()
	rec := do(h, http.MethodPost, "/api/token", nil, strings.NewReader(`{"api_key":"x"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := newRouter(t, sample, func(d *Deps) {
		d.Limiter = middleware.NewRateLimiter(rate.Every(time.Hour), 2)
	}).Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(h, http.MethodGet, "/api/health", nil, nil).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestGzip(t *testing.T) {
	var b strings.Builder
	b.WriteString("adapters:\n")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "  - name: Render Adapter %02d\n", i)
	}
	h := newRouter(t, b.String(), nil).Handler()

	rec := do(h, http.MethodGet, "/api/report", http.Header{"Accept-Encoding": {"gzip"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "DEDICATED : Render Adapter 00\n"))
	assert.Equal(t, 60, strings.Count(string(body), "\n"))
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name   string
		accept string
		want   string
	}{
		{name: "空", accept: "", want: mediaText},
		{name: "JSON", accept: "application/json", want: mediaJSON},
		{name: "带参数", accept: "application/cbor; q=0.9", want: codec.ContentType},
		{name: "多个取首个匹配", accept: "text/html, application/json, application/cbor", want: mediaJSON},
		{name: "通配", accept: "*/*", want: mediaText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/report", nil)
			if tt.accept != "" {
				r.Header.Set("Accept", tt.accept)
			}
			assert.Equal(t, tt.want, negotiate(r, mediaText, mediaJSON, codec.ContentType))
		})
	}
}
