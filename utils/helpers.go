package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"skolu-backend/engine"
)

// Standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusNotFound, message)
}

func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, message)
}

// FailWith maps engine errors to HTTP statuses. Validation problems are the
// caller's fault, policy denials are forbidden, consistency violations are
// ours. The specific reason always reaches the client; never a bare "failed".
func FailWith(c *gin.Context, err error) {
	var verr *engine.ValidationError
	var perr *engine.PolicyError
	var cerr *engine.ConsistencyError

	switch {
	case errors.As(err, &verr):
		BadRequest(c, verr.Reason)
	case errors.As(err, &perr):
		Forbidden(c, perr.Reason)
	case errors.As(err, &cerr):
		InternalError(c, "ledger consistency check failed")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "not found")
	default:
		InternalError(c, "something went wrong")
	}
}

// Parse UUID from string
func ParseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// Get current user ID from context (set by auth middleware)
func GetCurrentUserID(c *gin.Context) uuid.UUID {
	userID, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil
	}
	return userID.(uuid.UUID)
}

// Pagination helpers
type PaginationQuery struct {
	Page  int `form:"page,default=1"`
	Limit int `form:"limit,default=20"`
}

func (p *PaginationQuery) Offset() int {
	return (p.Page - 1) * p.Limit
}
