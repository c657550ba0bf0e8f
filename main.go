package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"skolu-backend/config"
	"skolu-backend/database"
	"skolu-backend/engine"
	"skolu-backend/handlers"
	"skolu-backend/logger"
	"skolu-backend/middleware"
	"skolu-backend/services"
	"skolu-backend/store"
)

func main() {
	config.Load()
	logger.Init(config.AppConfig.Env)
	defer logger.Log.Sync()

	db := database.Connect()
	st := store.NewGormStore(db)

	// Redis is optional; a nil client disables the balance cache.
	cache := services.NewBalanceCache(database.ConnectRedis())

	ctx := context.Background()
	notifier := services.NewNotificationService(ctx)
	invites := services.NewInvitationService(st, notifier)
	rates := engine.NewRateService(config.AppConfig.ExchangeRates())

	h := handlers.New(st, rates, cache, notifier, invites)

	if config.AppConfig.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(middleware.CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": config.AppConfig.AppName,
		})
	})

	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
	}

	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	{
		// User
		api.GET("/users/me", h.GetProfile)
		api.PUT("/users/me", h.UpdateProfile)
		api.PUT("/users/me/fcm-token", h.UpdateFCMToken)
		api.POST("/users/search", h.SearchUsers)

		// Groups
		api.POST("/groups", h.CreateGroup)
		api.GET("/groups", h.GetGroups)
		api.GET("/groups/:id", h.GetGroup)
		api.PUT("/groups/:id", h.UpdateGroup)
		api.DELETE("/groups/:id", h.DeleteGroup)
		api.POST("/groups/:id/members", h.AddMember)
		api.DELETE("/groups/:id/members/:uid", h.RemoveMember)
		api.PUT("/groups/:id/members/:uid/role", h.ChangeRole)
		api.POST("/groups/:id/leave", h.LeaveGroup)
		api.POST("/groups/:id/invite", h.InviteToGroup)

		// Expenses
		api.POST("/groups/:id/expenses", h.CreateExpense)
		api.GET("/groups/:id/expenses", h.GetGroupExpenses)
		api.GET("/expenses/:id", h.GetExpense)
		api.PUT("/expenses/:id", h.UpdateExpense)
		api.DELETE("/expenses/:id", h.DeleteExpense)

		// Balances
		api.GET("/groups/:id/balances", h.GetGroupBalances)
		api.GET("/balances", h.GetOverallBalances)

		// Settlements
		api.POST("/groups/:id/settle", h.CreateSettlement)
		api.GET("/groups/:id/settlements", h.GetGroupSettlements)

		// Activity
		api.GET("/activity", h.GetActivity)
		api.GET("/groups/:id/activity", h.GetGroupActivity)
	}

	addr := "0.0.0.0:" + config.AppConfig.Port
	logger.Log.Info("server starting",
		zap.String("service", config.AppConfig.AppName),
		zap.String("addr", addr),
		zap.String("env", config.AppConfig.Env))

	if err := r.Run(addr); err != nil {
		logger.Log.Fatal("failed to start server", zap.Error(err))
	}
}
