package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/backend"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/bridge"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/codec"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/middleware"
	"github.com/AnalyseDeCircuit/gpu-detect/pkg/types"
)

const (
	mediaText = "text/plain"
	mediaJSON = "application/json"
)

// ReportHandler 生成显卡报告
// @Summary 显卡报告
// @Description 枚举显卡并返回报告。默认返回纯文本，Accept 为 application/json 或 application/cbor 时返回带统计的信封
// @Tags Report
// @Produce plain
// @Produce json
// @Produce application/cbor
// @Param capacity query int false "缓冲区大小 (字节, 2..1048576)"
// @Param host query bool false "在 JSON/CBOR 信封中附带主机信息"
// @Security BearerAuth
// @Success 200 {object} types.ReportResponse
// @Failure 400 {object} types.ErrorResponse
// @Router /api/report [get]
func (rt *Router) ReportHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	capacity := rt.deps.Capacity
	if v := r.URL.Query().Get("capacity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid capacity")
			return
		}
		capacity = n
	}

	res, err := rt.deps.Bridge.Export(capacity)
	if err != nil {
		if errors.Is(err, bridge.ErrCapacity) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		rt.logger.Error("report export failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Report failed")
		return
	}

	w.Header().Set("X-Report-Truncated", strconv.FormatBool(res.Truncated()))
	w.Header().Set("Cache-Control", "no-store")

	switch negotiate(r, mediaText, mediaJSON, codec.ContentType) {
	case mediaJSON:
		writeJSON(w, http.StatusOK, rt.envelope(r, res))
	case codec.ContentType:
		writeCBOR(w, http.StatusOK, rt.envelope(r, res))
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(res.Text))
	}
}

func (rt *Router) envelope(r *http.Request, res bridge.Result) types.ReportResponse {
	resp := types.ReportResponse{
		Text:        res.Text,
		Capacity:    res.Capacity,
		Dropped:     res.Dropped,
		Truncated:   res.Truncated(),
		Integrated:  res.Summary.Integrated,
		Dedicated:   res.Summary.Dedicated,
		Warnings:    res.Summary.Warnings,
		FatalStage:  res.Summary.FatalStage,
		Backend:     rt.deps.Backend,
		RequestID:   middleware.GetRequestID(r.Context()),
		GeneratedAt: time.Now().UTC(),
		DurationMS:  float64(res.Duration.Microseconds()) / 1000,
	}
	if includeHost, _ := strconv.ParseBool(r.URL.Query().Get("host")); includeHost {
		if info, err := rt.hostInfo(); err == nil {
			resp.Host = info
		} else {
			rt.logger.Warn("host info unavailable", "error", err)
		}
	}
	return resp
}

// BackendsHandler 列出枚举后端
// @Summary 枚举后端
// @Description 列出可用的显卡枚举后端及当前使用的后端
// @Tags Report
// @Produce json
// @Success 200 {array} types.BackendInfo
// @Router /api/backends [get]
func (rt *Router) BackendsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	list := backend.List()
	out := make([]types.BackendInfo, 0, len(list))
	for _, b := range list {
		out = append(out, types.BackendInfo{
			Name:        b.Name,
			Description: b.Description,
			Available:   b.Available,
			Active:      b.Name == rt.deps.Backend,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HealthCheckHandler 健康检查
// @Summary 健康检查
// @Tags Monitoring
// @Produce json
// @Success 200 {object} types.HealthResponse
// @Router /api/health [get]
func (rt *Router) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if rt.deps.Hub != nil {
		clients = rt.deps.Hub.Clients()
	}
	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:    "ok",
		Version:   rt.deps.Version,
		Backend:   rt.deps.Backend,
		Clients:   clients,
		Timestamp: time.Now().UTC(),
	})
}
