// README: Base handler utilities (JSON helpers, error mapping, ownership checks).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"commute/internal/http/middleware"
	"commute/internal/modules/scheduler"
	"commute/internal/modules/trip"
	"commute/internal/notify"
	"commute/internal/prediction"
	"commute/internal/presence"
	"commute/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts UUIDs and Firebase uids: letters, digits and '-', at most 64 chars.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, trip.ErrBadRequest), errors.Is(err, prediction.ErrBadInput):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, trip.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// warningCodes turns the non-fatal scheduling conditions into stable codes.
func warningCodes(err error) []string {
	if err == nil {
		return nil
	}
	known := []struct {
		err  error
		code string
	}{
		{notify.ErrPermissionDenied, "notification_permission_denied"},
		{notify.ErrInvalidTriggerTime, "invalid_trigger_time"},
		{scheduler.ErrLeaveTimeInPast, "leave_time_in_past"},
		{presence.ErrNotSupported, "presence_not_supported"},
		{presence.ErrActivitiesDisabled, "presence_disabled"},
	}
	var codes []string
	for _, k := range known {
		if errors.Is(err, k.err) {
			codes = append(codes, k.code)
		}
	}
	return codes
}

// callerID returns the authenticated uid or writes 401.
func callerID(c *gin.Context) (types.ID, bool) {
	uid := middleware.CallerUID(c)
	if uid == "" {
		writeError(c, http.StatusUnauthorized, "unauthenticated")
		return "", false
	}
	return types.ID(uid), true
}
