// README: Device, inbox and preference handlers for the notification side of the API.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"commute/internal/modules/preferences"
	"commute/internal/notify"
	"commute/internal/types"
)

type DeviceRegistry interface {
	RegisterDevice(ctx context.Context, userID types.ID, token string) error
	UnregisterDevice(ctx context.Context, userID types.ID) error
}

type InboxReader interface {
	List(ctx context.Context, userID types.ID, now time.Time) ([]notify.Request, error)
}

type PreferencesStore interface {
	Load(ctx context.Context, userID types.ID) (preferences.Preferences, error)
	Save(ctx context.Context, userID types.ID, p preferences.Preferences) error
}

type AccountHandler struct {
	devices DeviceRegistry
	inbox   InboxReader
	prefs   PreferencesStore
	clock   types.Clock
}

func NewAccountHandler(devices DeviceRegistry, inbox InboxReader, prefs PreferencesStore, clock types.Clock) *AccountHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &AccountHandler{devices: devices, inbox: inbox, prefs: prefs, clock: clock}
}

type deviceReq struct {
	Token string `json:"token"`
}

// RegisterDevice handles PUT /api/devices.
func (h *AccountHandler) RegisterDevice(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	var req deviceReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		writeError(c, http.StatusBadRequest, "token is required")
		return
	}
	if err := h.devices.RegisterDevice(c.Request.Context(), uid, strings.TrimSpace(req.Token)); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UnregisterDevice handles DELETE /api/devices.
func (h *AccountHandler) UnregisterDevice(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	if err := h.devices.UnregisterDevice(c.Request.Context(), uid); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Inbox handles GET /api/inbox.
func (h *AccountHandler) Inbox(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	items, err := h.inbox.List(c.Request.Context(), uid, h.clock.Now())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if items == nil {
		items = []notify.Request{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"notifications": items})
}

// GetPreferences handles GET /api/preferences.
func (h *AccountHandler) GetPreferences(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	p, err := h.prefs.Load(c.Request.Context(), uid)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

// PutPreferences handles PUT /api/preferences.
func (h *AccountHandler) PutPreferences(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	var p preferences.Preferences
	if err := c.ShouldBindJSON(&p); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	for _, o := range p.ReminderOffsets {
		if o < 0 || o > 240 {
			writeError(c, http.StatusBadRequest, "reminder offsets must be between 0 and 240 minutes")
			return
		}
	}
	if err := h.prefs.Save(c.Request.Context(), uid, p); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}
