package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"skolu-backend/engine"
	"skolu-backend/models"
	"skolu-backend/utils"
)

// GET /api/groups/:id/balances
func (h *Handler) GetGroupBalances(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	ctx := c.Request.Context()
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	if err := h.authorize(c, groupID, engine.Request{ActorID: userID, Op: engine.OpViewGroup}); err != nil {
		utils.FailWith(c, err)
		return
	}

	if cached, ok := h.cache.Get(ctx, groupID); ok {
		utils.SuccessResponse(c, http.StatusOK, "", cached)
		return
	}

	group, err := h.store.GroupByID(ctx, groupID)
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	members, err := h.store.Members(ctx, groupID)
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	totalSpent, err := h.store.TotalSpent(ctx, groupID)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	names := make(map[uuid.UUID]string, len(members))
	balances := make(map[uuid.UUID]int64, len(members))
	memberBalances := make([]models.MemberBalance, 0, len(members))
	for _, m := range members {
		names[m.UserID] = m.User.Name
		balances[m.UserID] = m.Balance
		memberBalances = append(memberBalances, models.MemberBalance{
			UserID: m.UserID,
			Name:   m.User.Name,
			Amount: engine.FromMinor(m.Balance),
		})
	}

	edges := engine.SimplifyDebts(balances)
	simplified := make([]models.Balance, 0, len(edges))
	for _, e := range edges {
		simplified = append(simplified, models.Balance{
			From:     e.From,
			FromName: names[e.From],
			To:       e.To,
			ToName:   names[e.To],
			Amount:   engine.FromMinor(e.Amount),
			Currency: string(engine.BaseCurrency),
		})
	}

	summary := &models.GroupBalanceSummary{
		GroupID:    groupID,
		GroupName:  group.Name,
		Members:    memberBalances,
		Balances:   simplified,
		TotalSpent: engine.FromMinor(totalSpent),
		Currency:   string(engine.BaseCurrency),
	}

	h.cache.Set(ctx, summary)
	utils.SuccessResponse(c, http.StatusOK, "", summary)
}

// GET /api/balances
func (h *Handler) GetOverallBalances(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	ctx := c.Request.Context()

	groups, err := h.store.GroupsForUser(ctx, userID)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	// Net position against each friend, aggregated over the simplified debt
	// graphs of every shared group. Base-currency minor units throughout.
	friendTotals := make(map[uuid.UUID]int64)
	for _, g := range groups {
		balances, err := h.store.GroupBalances(ctx, g.ID)
		if err != nil {
			utils.FailWith(c, err)
			return
		}
		for _, e := range engine.SimplifyDebts(balances) {
			switch userID {
			case e.From:
				friendTotals[e.To] -= e.Amount
			case e.To:
				friendTotals[e.From] += e.Amount
			}
		}
	}

	var totalOwed, totalOwing int64
	friends := make([]models.FriendBalance, 0, len(friendTotals))
	for friendID, amount := range friendTotals {
		if engine.WithinEpsilon(amount, 0) {
			continue
		}

		user, err := h.store.UserByID(ctx, friendID)
		if err != nil {
			continue
		}

		friends = append(friends, models.FriendBalance{
			UserID:    friendID,
			Name:      user.Name,
			Email:     user.Email,
			AvatarURL: user.AvatarURL,
			Amount:    engine.FromMinor(amount),
			Currency:  string(engine.BaseCurrency),
		})

		if amount > 0 {
			totalOwed += amount
		} else {
			totalOwing += -amount
		}
	}

	summary := models.OverallBalanceSummary{
		TotalOwed:  engine.FromMinor(totalOwed),
		TotalOwing: engine.FromMinor(totalOwing),
		Friends:    friends,
	}

	utils.SuccessResponse(c, http.StatusOK, "", summary)
}
