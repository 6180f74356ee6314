package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trust-service/internal/service"
	"trust-service/internal/util"
)

// SecurityHandler exposes login, session and device management.
type SecurityHandler struct {
	securityService *service.SecurityService
}

func NewSecurityHandler(securityService *service.SecurityService) *SecurityHandler {
	return &SecurityHandler{securityService: securityService}
}

func (h *SecurityHandler) RegisterRoutes(router chi.Router) {
	router.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/session/validate", h.ValidateSession)
		r.Delete("/session/{sessionID}", h.InvalidateSession)
	})

	router.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/devices", h.GetDevices)
		r.Delete("/devices/{fingerprint}", h.RevokeDevice)
		r.Post("/logout-all", h.ForceLogoutAll)
		r.Get("/security-score", h.GetSecurityScore)
	})
}

func (h *SecurityHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	req.IPAddress = r.RemoteAddr
	req.UserAgent = r.UserAgent()

	result, err := h.securityService.SecureLogin(r.Context(), &req)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Login failed")
		return
	}

	message := "Login succeeded"
	if result.RequiresMFA {
		message = "Additional verification required"
	}
	respondWithJSON(w, http.StatusOK, successResponse(result, message))
}

type validateSessionRequest struct {
	SessionID         string `json:"session_id"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

func (h *SecurityHandler) ValidateSession(w http.ResponseWriter, r *http.Request) {
	var req validateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	valid, err := h.securityService.ValidateSession(r.Context(), req.SessionID, req.DeviceFingerprint)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to validate session")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(map[string]bool{"valid": valid}, "Session checked"))
}

func (h *SecurityHandler) InvalidateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.securityService.InvalidateSession(r.Context(), sessionID); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to invalidate session")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(nil, "Session invalidated"))
}

func (h *SecurityHandler) GetDevices(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	devices, err := h.securityService.GetUserDevices(r.Context(), userID)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to list devices")
		return
	}

	resp := successResponse(devices, "Devices retrieved")
	resp.Meta = &Meta{Total: len(devices)}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *SecurityHandler) RevokeDevice(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	fingerprint := chi.URLParam(r, "fingerprint")

	if err := h.securityService.RevokeDeviceAccess(r.Context(), userID, fingerprint); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to revoke device")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(nil, "Device revoked"))
}

func (h *SecurityHandler) ForceLogoutAll(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	count, err := h.securityService.ForceLogoutAllDevices(r.Context(), userID)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to log out devices")
		return
	}

	util.Info("forced logout via HTTP",
		util.String("user_id", userID),
		util.Int("session_count", count))
	respondWithJSON(w, http.StatusOK, successResponse(map[string]int{"sessions_ended": count}, "All devices logged out"))
}

func (h *SecurityHandler) GetSecurityScore(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	score, err := h.securityService.GetSecurityScore(r.Context(), userID)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to compute security score")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(map[string]int{"score": score}, "Security score computed"))
}
