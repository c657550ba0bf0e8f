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

// POST /api/groups/:id/settle
func (h *Handler) CreateSettlement(c *gin.Context) {
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

	var req models.CreateSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	paidTo, err := uuid.Parse(req.PaidTo)
	if err != nil {
		utils.BadRequest(c, "Invalid paid_to user ID")
		return
	}

	currency, err := h.rates.ParseCurrency(req.Currency)
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	amount, err := engine.ToMinor(req.Amount)
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	conv, err := h.rates.ToBase(amount, currency)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	transfer := engine.Transfer{From: userID, To: paidTo, Amount: conv.BaseAmount}

	// A settlement may not exceed what the payer still owes overall.
	balances, err := h.store.GroupBalances(ctx, groupID)
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	if _, ok := balances[paidTo]; !ok {
		utils.BadRequest(c, "Recipient is not a member of this group")
		return
	}
	if err := engine.ValidateSettlement(balances, transfer); err != nil {
		utils.FailWith(c, err)
		return
	}

	deltas, err := engine.SettlementDeltas(transfer)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	settlement := models.Settlement{
		GroupID:      groupID,
		PaidBy:       userID,
		PaidTo:       paidTo,
		Amount:       amount,
		Currency:     string(currency),
		BaseAmount:   conv.BaseAmount,
		ExchangeRate: conv.Rate.String(),
		Notes:        req.Notes,
	}

	if err := h.store.CreateSettlement(ctx, &settlement, deltas); err != nil {
		utils.FailWith(c, err)
		return
	}

	payer, perr := h.store.UserByID(ctx, userID)
	payee, eerr := h.store.UserByID(ctx, paidTo)
	group, gerr := h.store.GroupByID(ctx, groupID)
	if perr == nil && eerr == nil && gerr == nil {
		h.store.LogActivity(ctx, &models.Activity{
			GroupID:     groupID,
			UserID:      userID,
			Type:        "settlement",
			ReferenceID: settlement.ID,
			Description: fmt.Sprintf("%s paid %s %s %s",
				payer.Name, payee.Name, settlement.Currency, engine.FromMinor(settlement.Amount)),
		})
		go h.notifier.NotifySettlement(context.Background(), settlement, *payer, *payee, *group)
	}

	h.cache.Invalidate(ctx, groupID)
	utils.SuccessResponse(c, http.StatusCreated, "Settlement recorded", settlementResponse(settlement, payer, payee))
}

// GET /api/groups/:id/settlements
func (h *Handler) GetGroupSettlements(c *gin.Context) {
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

	settlements, err := h.store.SettlementsForGroup(ctx, groupID)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	responses := make([]models.SettlementResponse, 0, len(settlements))
	for _, s := range settlements {
		responses = append(responses, settlementResponse(s, &s.Payer, &s.Payee))
	}

	utils.SuccessResponse(c, http.StatusOK, "", responses)
}

func settlementResponse(s models.Settlement, payer, payee *models.User) models.SettlementResponse {
	resp := models.SettlementResponse{
		ID:           s.ID,
		GroupID:      s.GroupID,
		PaidBy:       s.PaidBy,
		PaidTo:       s.PaidTo,
		Amount:       engine.FromMinor(s.Amount),
		Currency:     s.Currency,
		BaseAmount:   engine.FromMinor(s.BaseAmount),
		ExchangeRate: s.ExchangeRate,
		Notes:        s.Notes,
		CreatedAt:    s.CreatedAt,
	}
	if payer != nil {
		resp.PayerName = payer.Name
	}
	if payee != nil {
		resp.PayeeName = payee.Name
	}
	return resp
}
