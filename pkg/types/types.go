// Package types 定义 HTTP 接口使用的公共类型
package types

import "time"

// --- 报告相关类型 ---

// ReportResponse 显卡报告响应
type ReportResponse struct {
	Text        string    `json:"text"`
	Capacity    int       `json:"capacity"`
	Dropped     int       `json:"dropped"`
	Truncated   bool      `json:"truncated"`
	Integrated  int       `json:"integrated"`
	Dedicated   int       `json:"dedicated"`
	Warnings    int       `json:"warnings"`
	FatalStage  string    `json:"fatal_stage,omitempty"`
	Backend     string    `json:"backend"`
	RequestID   string    `json:"request_id,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	DurationMS  float64   `json:"duration_ms"`
	Host        *HostInfo `json:"host,omitempty"`
}

// HostInfo 主机信息
type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	KernelArch      string `json:"kernel_arch"`
	Virtualization  string `json:"virtualization,omitempty"`
	Uptime          uint64 `json:"uptime"`
}

// BackendInfo 枚举后端信息
type BackendInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
	Active      bool   `json:"active"`
}

// --- 认证相关类型 ---

// TokenRequest 令牌请求
type TokenRequest struct {
	APIKey string `json:"api_key"`
}

// TokenResponse 令牌响应
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// --- 通用类型 ---

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Backend   string    `json:"backend"`
	Clients   int       `json:"ws_clients"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error"`
}
