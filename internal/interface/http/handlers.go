package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dhanush6858/green-gaurdian/internal/application/command"
	"github.com/Dhanush6858/green-gaurdian/internal/application/query"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/notification"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
	"github.com/Dhanush6858/green-gaurdian/internal/interface/http/handlers"
	"github.com/Dhanush6858/green-gaurdian/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":        "Green Guardian API",
		"version":     s.config.Version,
		"description": "Sustainable shopping progress: XP, levels, streaks, challenges and achievements",
		"endpoints": map[string]string{
			"health":          "/health",
			"progress":        "/api/v1/installations/{installationID}/progress",
			"actions":         "/api/v1/installations/{installationID}/actions",
			"challenges":      "/api/v1/installations/{installationID}/challenges",
			"achievements":    "/api/v1/installations/{installationID}/achievements",
			"recommendations": "/api/v1/recommendations",
		},
	})
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, r, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, r, http.StatusOK, status)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// handleReady handles the readiness check endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness check endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleIssueToken issues an installation token. Requires an API key.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	id, err := shared.NewInstallationID(installationIDParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	token, expiresAt, err := s.deps.Auth.IssueToken(id.String())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, map[string]any{
		"installationId": id.String(),
		"token":          token,
		"tokenType":      "Bearer",
		"expiresAt":      expiresAt.UTC(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleInitialize loads or creates the record and applies period rollover.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Initialize.Handle(r.Context(), command.InitializeCommand{
		InstallationID: installationIDParam(r),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleGetProgress returns the progress summary.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	recent, err := getQueryParamInt(r, "recent", 0)
	if err != nil {
		s.writeBadRequest(w, r, err)
		return
	}

	dto, err := s.deps.GetProgress.Handle(r.Context(), query.GetProgressQuery{
		InstallationID: installationIDParam(r),
		RecentActivity: recent,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleGetLevelProgress returns progress toward the next level.
func (s *Server) handleGetLevelProgress(w http.ResponseWriter, r *http.Request) {
	lp, err := s.deps.GetProgress.HandleLevelProgress(r.Context(), installationIDParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, lp)
}

// handleResetProgress deletes the progress record.
func (s *Server) handleResetProgress(w http.ResponseWriter, r *http.Request) {
	id := installationIDParam(r)
	if err := s.deps.ResetProgress.Handle(r.Context(), command.ResetProgressCommand{InstallationID: id}); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"installationId": id, "reset": true})
}

// handleGetMonthlyProgress returns this month's totals and daily history.
func (s *Server) handleGetMonthlyProgress(w http.ResponseWriter, r *http.Request) {
	days, err := getQueryParamInt(r, "days", 0)
	if err != nil {
		s.writeBadRequest(w, r, err)
		return
	}

	dto, err := s.deps.GetMonthlyProgress.Handle(r.Context(), query.GetMonthlyProgressQuery{
		InstallationID: installationIDParam(r),
		HistoryDays:    days,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRecordAction records a sustainable action.
func (s *Server) handleRecordAction(w http.ResponseWriter, r *http.Request) {
	var req recordActionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeBadRequest(w, r, err)
		return
	}

	res, err := s.deps.RecordAction.Handle(r.Context(), command.RecordActionCommand{
		InstallationID: installationIDParam(r),
		Kind:           req.Kind,
		Amount:         req.Amount,
		CO2Kg:          req.CO2Kg,
		MoneySaved:     req.MoneySaved,
		IdempotencyKey: req.IdempotencyKey,
		CorrelationID:  requestID(r),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if !res.Persisted {
		status = http.StatusAccepted
	}
	writeJSON(w, r, status, res)
}

// handleGetActivity returns the activity log.
func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := getQueryParamInt(r, "limit", 0)
	if err != nil {
		s.writeBadRequest(w, r, err)
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		if since, err = time.Parse(time.RFC3339, raw); err != nil {
			s.writeBadRequest(w, r, errors.New(`query parameter "since" must be an RFC 3339 timestamp`))
			return
		}
	}

	dto, err := s.deps.GetActivity.Handle(r.Context(), query.GetActivityQuery{
		InstallationID: installationIDParam(r),
		Limit:          limit,
		Since:          since,
		Kind:           r.URL.Query().Get("kind"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, dto, &ResponseMeta{TotalCount: dto.Total})
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT & CHALLENGE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetAchievements returns the achievement table.
func (s *Server) handleGetAchievements(w http.ResponseWriter, r *http.Request) {
	dto, err := s.deps.GetAchievements.Handle(r.Context(), query.GetAchievementsQuery{
		InstallationID: installationIDParam(r),
		UnlockedOnly:   getQueryParamBool(r, "unlocked"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleEvaluateAchievements unlocks every satisfied achievement.
func (s *Server) handleEvaluateAchievements(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.EvaluateAchievements.Handle(r.Context(), command.EvaluateAchievementsCommand{
		InstallationID: installationIDParam(r),
		CorrelationID:  requestID(r),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleGetChallenges returns the current challenges.
func (s *Server) handleGetChallenges(w http.ResponseWriter, r *http.Request) {
	dto, err := s.deps.GetChallenges.Handle(r.Context(), query.GetChallengesQuery{
		InstallationID: installationIDParam(r),
		Scope:          r.URL.Query().Get("scope"),
		ActiveOnly:     getQueryParamBool(r, "active"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleUpdateChallenge advances a challenge by the given delta.
func (s *Server) handleUpdateChallenge(w http.ResponseWriter, r *http.Request) {
	var req updateChallengeRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeBadRequest(w, r, err)
		return
	}

	res, err := s.deps.UpdateChallenge.Handle(r.Context(), command.UpdateChallengeCommand{
		InstallationID: installationIDParam(r),
		ChallengeID:    chi.URLParam(r, "challengeID"),
		Delta:          req.Delta,
		CorrelationID:  requestID(r),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetSettings returns the installation settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.GetSettings.Handle(r.Context(), installationIDParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, settings)
}

// handleUpdateSettings applies a partial settings update.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeBadRequest(w, r, err)
		return
	}

	res, err := s.deps.UpdateSettings.Handle(r.Context(), command.UpdateSettingsCommand{
		InstallationID: installationIDParam(r),
		Patch:          req.patch(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleResetSettings restores the default settings.
func (s *Server) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.UpdateSettings.HandleReset(r.Context(), installationIDParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetNotifications returns the notifications visible now.
func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := shared.NewInstallationID(installationIDParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	items := []*notification.Notification{}
	if s.deps.Notifications != nil {
		if items, err = s.deps.Notifications.Active(r.Context(), id, s.deps.Clock.Now()); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSONWithMeta(w, r, http.StatusOK, items, &ResponseMeta{TotalCount: len(items)})
}

// handleDismissNotification closes a notification.
func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	if s.deps.Notifications == nil {
		s.writeError(w, r, shared.ErrNotificationNotFound)
		return
	}

	id := notification.NotificationID(chi.URLParam(r, "notificationID"))
	if err := s.deps.Notifications.Dismiss(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"id": id, "dismissed": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOMMENDATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetRecommendations returns sustainable alternatives for a product.
// A failing recommendation service degrades to local suggestions, never to an error.
func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationsRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeBadRequest(w, r, err)
		return
	}

	installationID := req.InstallationID
	if p, ok := handlers.PrincipalFrom(r.Context()); ok && !p.Admin {
		installationID = p.InstallationID
	}

	dto := s.deps.GetRecommendations.Handle(r.Context(), query.GetRecommendationsQuery{
		InstallationID: installationID,
		Product:        req.product(),
	})
	writeJSON(w, r, http.StatusOK, dto)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) writeBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_request", "Request is invalid", err.Error())
}

// writeError maps domain errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", requestID(r)),
			logger.Err(err),
		)
		writeJSONError(w, r, status, code, http.StatusText(status))
		return
	}
	writeJSONErrorWithDetails(w, r, status, code, http.StatusText(status), err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest),
		shared.IsValidation(err),
		errors.Is(err, shared.ErrInvalidFormat):
		return http.StatusBadRequest, "invalid_request"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrInvalidState),
		errors.Is(err, shared.ErrAlreadyProcessed),
		shared.IsVersionConflict(err):
		return http.StatusConflict, "conflict"
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, handlers.ErrTokensDisabled):
		return http.StatusNotImplemented, "tokens_disabled"
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, shared.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case shared.IsExternalService(err):
		return http.StatusServiceUnavailable, "service_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
