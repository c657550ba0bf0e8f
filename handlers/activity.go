package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"skolu-backend/engine"
	"skolu-backend/utils"
)

// GET /api/activity
func (h *Handler) GetActivity(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	ctx := c.Request.Context()

	var pagination utils.PaginationQuery
	c.ShouldBindQuery(&pagination)

	activities, err := h.store.ActivityForUser(ctx, userID, pagination.Offset(), pagination.Limit)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	// Attach group names for the feed.
	groupNames := make(map[uuid.UUID]string)
	for i := range activities {
		name, ok := groupNames[activities[i].GroupID]
		if !ok {
			if group, err := h.store.GroupByID(ctx, activities[i].GroupID); err == nil {
				name = group.Name
			}
			groupNames[activities[i].GroupID] = name
		}
		activities[i].GroupName = name
	}

	utils.SuccessResponse(c, http.StatusOK, "", activities)
}

// GET /api/groups/:id/activity
func (h *Handler) GetGroupActivity(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	if err := h.authorize(c, groupID, engine.Request{ActorID: userID, Op: engine.OpViewGroup}); err != nil {
		utils.FailWith(c, err)
		return
	}

	var pagination utils.PaginationQuery
	c.ShouldBindQuery(&pagination)

	activities, err := h.store.ActivityForGroup(c.Request.Context(), groupID, pagination.Offset(), pagination.Limit)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", activities)
}
