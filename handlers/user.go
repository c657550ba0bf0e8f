package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"skolu-backend/models"
	"skolu-backend/utils"
)

type UpdateProfileRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	AvatarURL string `json:"avatar_url"`
	Currency  string `json:"currency"`
}

type UpdateFCMTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// GET /api/users/me
func (h *Handler) GetProfile(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	user, err := h.store.UserByID(c.Request.Context(), userID)
	if err != nil {
		utils.NotFound(c, "User not found")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", user.ToResponse())
}

// PUT /api/users/me
func (h *Handler) UpdateProfile(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	user, err := h.store.UserByID(c.Request.Context(), userID)
	if err != nil {
		utils.NotFound(c, "User not found")
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if req.AvatarURL != "" {
		user.AvatarURL = req.AvatarURL
	}
	if req.Currency != "" {
		if _, err := h.rates.ParseCurrency(req.Currency); err != nil {
			utils.FailWith(c, err)
			return
		}
		user.Currency = req.Currency
	}

	if err := h.store.UpdateUser(c.Request.Context(), user); err != nil {
		utils.InternalError(c, "Failed to update profile")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profile updated", user.ToResponse())
}

// PUT /api/users/me/fcm-token
func (h *Handler) UpdateFCMToken(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var req UpdateFCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	user, err := h.store.UserByID(c.Request.Context(), userID)
	if err != nil {
		utils.NotFound(c, "User not found")
		return
	}

	user.FCMToken = req.Token
	if err := h.store.UpdateUser(c.Request.Context(), user); err != nil {
		utils.InternalError(c, "Failed to update FCM token")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "FCM token updated", nil)
}

// POST /api/users/search
func (h *Handler) SearchUsers(c *gin.Context) {
	var req struct {
		Query string `json:"query" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	users, err := h.store.SearchUsers(c.Request.Context(), req.Query, 20)
	if err != nil {
		utils.InternalError(c, "Search failed")
		return
	}

	responses := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, u.ToResponse())
	}

	utils.SuccessResponse(c, http.StatusOK, "", responses)
}
