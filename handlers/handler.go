package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"skolu-backend/engine"
	"skolu-backend/models"
	"skolu-backend/services"
	"skolu-backend/store"
)

// Handler carries the dependencies every endpoint needs. All routes are
// methods on it; nothing in this package touches package-level state.
type Handler struct {
	store    store.Store
	rates    *engine.RateService
	cache    *services.BalanceCache
	notifier *services.NotificationService
	invites  *services.InvitationService
}

func New(st store.Store, rates *engine.RateService, cache *services.BalanceCache, notifier *services.NotificationService, invites *services.InvitationService) *Handler {
	return &Handler{
		store:    st,
		rates:    rates,
		cache:    cache,
		notifier: notifier,
		invites:  invites,
	}
}

// authorize loads the group snapshot and runs the request through the policy
// gate. The returned error is already a PolicyError with the denial reason.
func (h *Handler) authorize(c *gin.Context, groupID uuid.UUID, req engine.Request) error {
	snap, err := h.store.Snapshot(c.Request.Context(), groupID)
	if err != nil {
		return err
	}
	return engine.Authorize(snap, req).Err()
}

// groupResponse assembles the group with its members and their balances.
func (h *Handler) groupResponse(c *gin.Context, group *models.Group) (models.GroupResponse, error) {
	members, err := h.store.Members(c.Request.Context(), group.ID)
	if err != nil {
		return models.GroupResponse{}, err
	}

	memberResponses := make([]models.GroupMemberResponse, 0, len(members))
	for _, m := range members {
		memberResponses = append(memberResponses, models.GroupMemberResponse{
			UserID:    m.UserID,
			Name:      m.User.Name,
			Email:     m.User.Email,
			AvatarURL: m.User.AvatarURL,
			Role:      m.Role,
			Balance:   engine.FromMinor(m.Balance),
			JoinedAt:  m.JoinedAt,
		})
	}

	return models.GroupResponse{
		ID:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		Type:        group.Type,
		CreatedBy:   group.CreatedBy,
		Members:     memberResponses,
		CreatedAt:   group.CreatedAt,
	}, nil
}
