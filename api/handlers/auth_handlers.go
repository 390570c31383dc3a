// Package handlers 提供HTTP路由处理器
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/auth"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/middleware"
	"github.com/AnalyseDeCircuit/gpu-detect/pkg/types"
)

// TokenHandler 用 API Key 换取 JWT
// @Summary 获取令牌
// @Description 校验 API Key 并签发 JWT，同时写入 HttpOnly Cookie
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body types.TokenRequest true "API Key"
// @Success 200 {object} types.TokenResponse
// @Failure 401 {object} types.ErrorResponse
// @Failure 429 {object} types.ErrorResponse
// @Router /api/token [post]
func (rt *Router) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if rt.deps.Auth == nil {
		writeJSONError(w, http.StatusNotFound, "Authentication disabled")
		return
	}

	var req types.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	token, exp, err := rt.deps.Auth.IssueToken(req.APIKey, middleware.IPBasedKey(r))
	switch {
	case errors.Is(err, auth.ErrTooManyAttempts):
		writeJSONError(w, http.StatusTooManyRequests, "Too many attempts. Please try again later.")
		return
	case errors.Is(err, auth.ErrInvalidAPIKey), errors.Is(err, auth.ErrNoAPIKey):
		rt.logger.Warn("token request rejected", "remote", r.RemoteAddr, "error", err)
		writeJSONError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case err != nil:
		rt.logger.Error("token signing failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// 设置安全的HTTP Cookie
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(time.Until(exp).Seconds()),
	})
	writeJSON(w, http.StatusOK, types.TokenResponse{Token: token, ExpiresAt: exp})
}

// RevokeHandler 吊销当前令牌
// @Summary 吊销令牌
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Router /api/token/revoke [post]
func (rt *Router) RevokeHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if rt.deps.Auth == nil {
		writeJSONError(w, http.StatusNotFound, "Authentication disabled")
		return
	}
	if token := middleware.BearerToken(r); token != "" {
		rt.deps.Auth.Revoke(token)
	}

	// 清除Cookie
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
