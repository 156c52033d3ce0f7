// internal/handlers/campaign/campaign_handler.go
package campaign

import (
	"context"
	"net/http"
	"strconv"

	"smartdeals-service/internal/domain/campaign"
	xerrors "smartdeals-service/internal/pkg/errors"
	"smartdeals-service/internal/pkg/response"
	service "smartdeals-service/internal/service/campaign"

	"github.com/gin-gonic/gin"
)

type CampaignHandler struct {
	manager *service.Manager
}

func NewCampaignHandler(manager *service.Manager) *CampaignHandler {
	return &CampaignHandler{manager: manager}
}

// CreateCampaign creates a new discount campaign.
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req campaign.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}
	req.ActorID = actorID(c)

	result, err := h.manager.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "failed to create campaign", err)
		return
	}

	response.Success(c, http.StatusCreated, "campaign created successfully", result)
}

// UpdateCampaign applies a partial update to a campaign.
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	var req campaign.UpdateCampaignRequest
	if err := c.ShouldBindBodyWithJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}
	// Distinguish an omitted schedule from an explicit null.
	raw := map[string]any{}
	if err := c.ShouldBindBodyWithJSON(&raw); err == nil {
		_, hasStart := raw["starts_at"]
		_, hasEnd := raw["ends_at"]
		req.HasSchedule = hasStart || hasEnd
	}
	req.ActorID = actorID(c)

	result, err := h.manager.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, "failed to update campaign", err)
		return
	}

	response.Success(c, http.StatusOK, "campaign updated successfully", result)
}

// GetCampaign returns one campaign by ID.
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	result, err := h.manager.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, "failed to get campaign", err)
		return
	}

	response.Success(c, http.StatusOK, "campaign retrieved successfully", result)
}

// ListCampaigns returns a filtered, paginated campaign list.
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	var filters campaign.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid filters", err)
		return
	}

	result, err := h.manager.List(c.Request.Context(), &filters)
	if err != nil {
		respondError(c, "failed to list campaigns", err)
		return
	}

	response.Success(c, http.StatusOK, "campaigns retrieved successfully", result)
}

// ActivateCampaign moves a campaign into active.
func (h *CampaignHandler) ActivateCampaign(c *gin.Context) {
	h.statusCommand(c, "campaign activated successfully", h.manager.Activate)
}

// PauseCampaign suspends an active campaign.
func (h *CampaignHandler) PauseCampaign(c *gin.Context) {
	h.statusCommand(c, "campaign paused successfully", h.manager.Pause)
}

// ArchiveCampaign retires a campaign.
func (h *CampaignHandler) ArchiveCampaign(c *gin.Context) {
	h.statusCommand(c, "campaign archived successfully", h.manager.Archive)
}

// ExpireCampaign ends a campaign ahead of its schedule.
func (h *CampaignHandler) ExpireCampaign(c *gin.Context) {
	h.statusCommand(c, "campaign expired successfully", h.manager.Expire)
}

// DeleteCampaign soft-deletes a campaign.
func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	if err := h.manager.Delete(c.Request.Context(), id); err != nil {
		respondError(c, "failed to delete campaign", err)
		return
	}

	response.Success(c, http.StatusOK, "campaign deleted successfully", nil)
}

// DuplicateCampaign clones a campaign into a fresh draft.
func (h *CampaignHandler) DuplicateCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	var ov campaign.DuplicateOverrides
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&ov); err != nil {
			response.Error(c, http.StatusBadRequest, "invalid request", err)
			return
		}
	}
	ov.ActorID = actorID(c)

	result, err := h.manager.Duplicate(c.Request.Context(), id, &ov)
	if err != nil {
		respondError(c, "failed to duplicate campaign", err)
		return
	}

	response.Success(c, http.StatusCreated, "campaign duplicated successfully", result)
}

// ProcessScheduled runs one reconciliation pass on demand.
func (h *CampaignHandler) ProcessScheduled(c *gin.Context) {
	result, err := h.manager.ProcessScheduledCampaigns(c.Request.Context())
	if err != nil {
		respondError(c, "failed to process scheduled campaigns", err)
		return
	}

	response.Success(c, http.StatusOK, "scheduled campaigns processed", result)
}

// RecentlyExpired returns the rolling list of recently expired campaigns.
func (h *CampaignHandler) RecentlyExpired(c *gin.Context) {
	entries, err := h.manager.RecentlyExpired(c.Request.Context())
	if err != nil {
		respondError(c, "failed to load expiry history", err)
		return
	}

	response.Success(c, http.StatusOK, "recently expired campaigns retrieved", entries)
}

// GetCampaignStats returns the dashboard counters.
func (h *CampaignHandler) GetCampaignStats(c *gin.Context) {
	stats, err := h.manager.Stats(c.Request.Context())
	if err != nil {
		respondError(c, "failed to get campaign stats", err)
		return
	}

	response.Success(c, http.StatusOK, "campaign stats retrieved successfully", stats)
}

func (h *CampaignHandler) statusCommand(
	c *gin.Context,
	message string,
	fn func(ctx context.Context, id int64, actorID int64) (*campaign.Campaign, error),
) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	result, err := fn(c.Request.Context(), id, actorID(c))
	if err != nil {
		respondError(c, "failed to change campaign status", err)
		return
	}

	response.Success(c, http.StatusOK, message, result)
}

func campaignID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid campaign ID", err)
		return 0, false
	}
	return id, true
}

// actorID reads the acting user from the X-Actor-ID header; zero means the
// caller stays anonymous and audit fields are left null.
func actorID(c *gin.Context) int64 {
	id, _ := strconv.ParseInt(c.GetHeader("X-Actor-ID"), 10, 64)
	return id
}

func respondError(c *gin.Context, message string, err error) {
	switch {
	case xerrors.Is(err, xerrors.ErrNotFound):
		response.Error(c, http.StatusNotFound, message, err)
	case xerrors.Is(err, xerrors.ErrInvalidInput),
		xerrors.Is(err, service.ErrInvalidTransition),
		xerrors.Is(err, service.ErrStartDateNotFuture),
		xerrors.Is(err, service.ErrEndDateStillAhead):
		response.Error(c, http.StatusBadRequest, message, err)
	case xerrors.Is(err, xerrors.ErrDuplicateEntry), xerrors.Is(err, xerrors.ErrVersionMismatch):
		response.Error(c, http.StatusConflict, message, err)
	default:
		response.Error(c, http.StatusInternalServerError, message, err)
	}
}
