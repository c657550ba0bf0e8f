package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"skolu-backend/engine"
	"skolu-backend/models"
	"skolu-backend/utils"
)

// POST /api/groups
func (h *Handler) CreateGroup(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	ctx := c.Request.Context()

	var req models.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	groupType := req.Type
	if groupType == "" {
		groupType = "other"
	}

	group := models.Group{
		Name:        req.Name,
		Description: req.Description,
		Type:        groupType,
		CreatedBy:   userID,
	}

	// The creator joins as admin inside the same transaction.
	if err := h.store.CreateGroup(ctx, &group, userID); err != nil {
		utils.InternalError(c, "Failed to create group")
		return
	}

	for _, memberInput := range req.Members {
		memberUUID, err := uuid.Parse(memberInput)
		if err != nil {
			// Might be an email, try to find the user.
			if user, dbErr := h.store.UserByEmail(ctx, memberInput); dbErr == nil {
				memberUUID = user.ID
			} else {
				go h.invites.InviteToGroup(context.Background(), group.ID, userID, memberInput, "")
				continue
			}
		}

		if memberUUID != userID {
			h.store.AddMember(ctx, &models.GroupMember{
				GroupID: group.ID,
				UserID:  memberUUID,
				Role:    engine.RoleMember,
			})
		}
	}

	if creator, err := h.store.UserByID(ctx, userID); err == nil {
		h.store.LogActivity(ctx, &models.Activity{
			GroupID:     group.ID,
			UserID:      userID,
			Type:        "group_created",
			ReferenceID: group.ID,
			Description: fmt.Sprintf("%s created group \"%s\"", creator.Name, group.Name),
		})
	}

	response, err := h.groupResponse(c, &group)
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "Group created", response)
}

// GET /api/groups
func (h *Handler) GetGroups(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	groups, err := h.store.GroupsForUser(c.Request.Context(), userID)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	responses := make([]models.GroupResponse, 0, len(groups))
	for i := range groups {
		resp, err := h.groupResponse(c, &groups[i])
		if err != nil {
			utils.FailWith(c, err)
			return
		}
		responses = append(responses, resp)
	}

	utils.SuccessResponse(c, http.StatusOK, "", responses)
}

// GET /api/groups/:id
func (h *Handler) GetGroup(c *gin.Context) {
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

	group, err := h.store.GroupByID(c.Request.Context(), groupID)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	response, err := h.groupResponse(c, group)
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", response)
}

// PUT /api/groups/:id
func (h *Handler) UpdateGroup(c *gin.Context) {
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

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Type        string `json:"type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Type != "" {
		updates["type"] = req.Type
	}

	if len(updates) > 0 {
		if err := h.store.UpdateGroup(c.Request.Context(), groupID, updates); err != nil {
			utils.FailWith(c, err)
			return
		}
	}

	group, err := h.store.GroupByID(c.Request.Context(), groupID)
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	response, err := h.groupResponse(c, group)
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Group updated", response)
}

// DELETE /api/groups/:id
func (h *Handler) DeleteGroup(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	ctx := c.Request.Context()
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	if err := h.authorize(c, groupID, engine.Request{ActorID: userID, Op: engine.OpDeleteGroup}); err != nil {
		utils.FailWith(c, err)
		return
	}

	if err := h.store.DeleteGroup(ctx, groupID); err != nil {
		utils.FailWith(c, err)
		return
	}

	h.cache.Invalidate(ctx, groupID)
	utils.SuccessResponse(c, http.StatusOK, "Group deleted", nil)
}

// POST /api/groups/:id/members
func (h *Handler) AddMember(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	ctx := c.Request.Context()
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	var req models.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	role := engine.RoleMember
	if req.Role != "" {
		role, err = engine.ParseRole(req.Role)
		if err != nil {
			utils.FailWith(c, err)
			return
		}
	}

	var targetUser *models.User
	if req.UserID != "" {
		if memberUUID, err := uuid.Parse(req.UserID); err == nil {
			targetUser, _ = h.store.UserByID(ctx, memberUUID)
		}
	}
	if targetUser == nil && req.Email != "" {
		targetUser, _ = h.store.UserByEmail(ctx, req.Email)
	}
	if targetUser == nil && req.Phone != "" {
		targetUser, _ = h.store.UserByPhone(ctx, req.Phone)
	}

	if targetUser == nil {
		// Not registered yet, fall back to an invitation.
		if req.Email == "" && req.Phone == "" {
			utils.BadRequest(c, "User not found; email or phone required to invite")
			return
		}
		if err := h.authorize(c, groupID, engine.Request{ActorID: userID, Op: engine.OpAddMember, NewRole: role, Email: req.Email}); err != nil {
			utils.FailWith(c, err)
			return
		}
		go h.invites.InviteToGroup(context.Background(), groupID, userID, req.Email, req.Phone)
		utils.SuccessResponse(c, http.StatusOK, "Invitation sent", nil)
		return
	}

	authReq := engine.Request{
		ActorID:  userID,
		Op:       engine.OpAddMember,
		TargetID: targetUser.ID,
		NewRole:  role,
		Email:    targetUser.Email,
	}
	if err := h.authorize(c, groupID, authReq); err != nil {
		utils.FailWith(c, err)
		return
	}

	if err := h.store.AddMember(ctx, &models.GroupMember{
		GroupID: groupID,
		UserID:  targetUser.ID,
		Role:    role,
	}); err != nil {
		utils.InternalError(c, "Failed to add member")
		return
	}

	group, gerr := h.store.GroupByID(ctx, groupID)
	adder, aerr := h.store.UserByID(ctx, userID)
	if gerr == nil && aerr == nil {
		h.store.LogActivity(ctx, &models.Activity{
			GroupID:     groupID,
			UserID:      userID,
			Type:        "member_joined",
			Description: fmt.Sprintf("%s added %s to %s", adder.Name, targetUser.Name, group.Name),
		})
		go h.notifier.NotifyMemberAdded(context.Background(), *group, *adder, *targetUser)
	}

	h.cache.Invalidate(ctx, groupID)
	utils.SuccessResponse(c, http.StatusOK, "Member added", targetUser.ToResponse())
}

// DELETE /api/groups/:id/members/:uid
func (h *Handler) RemoveMember(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	ctx := c.Request.Context()
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}
	memberUID, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		utils.BadRequest(c, "Invalid user ID")
		return
	}

	if err := h.authorize(c, groupID, engine.Request{
		ActorID:  userID,
		Op:       engine.OpRemoveMember,
		TargetID: memberUID,
	}); err != nil {
		utils.FailWith(c, err)
		return
	}

	if err := h.store.RemoveMember(ctx, groupID, memberUID); err != nil {
		utils.FailWith(c, err)
		return
	}

	removedUser, uerr := h.store.UserByID(ctx, memberUID)
	group, gerr := h.store.GroupByID(ctx, groupID)
	if uerr == nil && gerr == nil {
		h.store.LogActivity(ctx, &models.Activity{
			GroupID:     groupID,
			UserID:      userID,
			Type:        "member_removed",
			Description: fmt.Sprintf("%s was removed from %s", removedUser.Name, group.Name),
		})
	}

	h.cache.Invalidate(ctx, groupID)
	utils.SuccessResponse(c, http.StatusOK, "Member removed", nil)
}

// PUT /api/groups/:id/members/:uid/role
func (h *Handler) ChangeRole(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	ctx := c.Request.Context()
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}
	memberUID, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		utils.BadRequest(c, "Invalid user ID")
		return
	}

	var req models.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	newRole, err := engine.ParseRole(req.Role)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	snap, err := h.store.Snapshot(ctx, groupID)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	authReq := engine.Request{
		ActorID:  userID,
		Op:       engine.OpChangeRole,
		TargetID: memberUID,
		NewRole:  newRole,
	}
	if err := engine.Authorize(snap, authReq).Err(); err != nil {
		utils.FailWith(c, err)
		return
	}

	// A sole admin promoting someone hands over the admin seat in the same
	// transaction so the group never has two admins or none.
	roles := map[uuid.UUID]engine.Role{memberUID: newRole}
	if engine.RoleTransfer(snap, userID, memberUID, newRole) {
		roles[userID] = engine.RoleMember
	}

	if err := h.store.SetRoles(ctx, groupID, roles); err != nil {
		utils.FailWith(c, err)
		return
	}

	target, uerr := h.store.UserByID(ctx, memberUID)
	group, gerr := h.store.GroupByID(ctx, groupID)
	if uerr == nil && gerr == nil {
		h.store.LogActivity(ctx, &models.Activity{
			GroupID:     groupID,
			UserID:      userID,
			Type:        "role_changed",
			Description: fmt.Sprintf("%s is now %s in %s", target.Name, newRole, group.Name),
		})
	}

	utils.SuccessResponse(c, http.StatusOK, "Role updated", nil)
}

// POST /api/groups/:id/leave
func (h *Handler) LeaveGroup(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	ctx := c.Request.Context()
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	if err := h.authorize(c, groupID, engine.Request{ActorID: userID, Op: engine.OpLeaveGroup}); err != nil {
		utils.FailWith(c, err)
		return
	}

	if err := h.store.RemoveMember(ctx, groupID, userID); err != nil {
		utils.FailWith(c, err)
		return
	}

	user, uerr := h.store.UserByID(ctx, userID)
	group, gerr := h.store.GroupByID(ctx, groupID)
	if uerr == nil && gerr == nil {
		h.store.LogActivity(ctx, &models.Activity{
			GroupID:     groupID,
			UserID:      userID,
			Type:        "member_left",
			Description: fmt.Sprintf("%s left %s", user.Name, group.Name),
		})
	}

	h.cache.Invalidate(ctx, groupID)
	utils.SuccessResponse(c, http.StatusOK, "Left group", nil)
}

// POST /api/groups/:id/invite
func (h *Handler) InviteToGroup(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	var req models.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	if req.Email == "" && req.Phone == "" {
		utils.BadRequest(c, "Email or phone required")
		return
	}

	if err := h.authorize(c, groupID, engine.Request{ActorID: userID, Op: engine.OpAddMember, Email: req.Email}); err != nil {
		utils.FailWith(c, err)
		return
	}

	go h.invites.InviteToGroup(context.Background(), groupID, userID, req.Email, req.Phone)

	utils.SuccessResponse(c, http.StatusOK, "Invitation sent", nil)
}
