package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"skolu-backend/engine"
	"skolu-backend/models"
	"skolu-backend/utils"
)

// POST /api/groups/:id/expenses
func (h *Handler) CreateExpense(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	ctx := c.Request.Context()
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	if err := h.authorize(c, groupID, engine.Request{ActorID: userID, Op: engine.OpAddExpense}); err != nil {
		utils.FailWith(c, err)
		return
	}

	var req models.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	expenseDate := time.Now()
	if req.ExpenseDate != "" {
		if parsed, err := time.Parse("2006-01-02", req.ExpenseDate); err == nil {
			expenseDate = parsed
		}
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

	strategy, err := engine.ParseStrategy(req.SplitType)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	participants, err := h.buildParticipants(ctx, groupID, strategy, req.Splits)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	// Inputs are validated in the currency the client supplied, then the
	// base-currency amount is reallocated along the same proportions.
	origShares, err := engine.ComputeSplits(amount, strategy, participants)
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	shares, err := toBaseShares(conv, origShares)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	deltas, err := engine.ExpenseDeltas(userID, shares)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	expense := models.Expense{
		GroupID:      groupID,
		PaidBy:       userID,
		Description:  req.Description,
		Amount:       amount,
		Currency:     string(currency),
		BaseAmount:   conv.BaseAmount,
		ExchangeRate: conv.Rate.String(),
		Category:     req.Category,
		SplitType:    string(strategy),
		Notes:        req.Notes,
		ExpenseDate:  expenseDate,
	}
	splits := splitModels(shares)

	if err := h.store.CreateExpense(ctx, &expense, splits, deltas); err != nil {
		utils.FailWith(c, err)
		return
	}

	payer, perr := h.store.UserByID(ctx, userID)
	group, gerr := h.store.GroupByID(ctx, groupID)
	if perr == nil && gerr == nil {
		h.store.LogActivity(ctx, &models.Activity{
			GroupID:     groupID,
			UserID:      userID,
			Type:        "expense_added",
			ReferenceID: expense.ID,
			Description: fmt.Sprintf("%s added \"%s\" (%s %s)",
				payer.Name, expense.Description, expense.Currency, engine.FromMinor(expense.Amount)),
		})

		if members, err := h.store.Members(ctx, groupID); err == nil {
			users := make([]models.User, 0, len(members))
			for _, m := range members {
				users = append(users, m.User)
			}
			go h.notifier.NotifyExpenseAdded(context.Background(), expense, splits, *payer, users, *group)
		}
	}

	h.cache.Invalidate(ctx, groupID)

	response, err := h.expenseResponse(ctx, &expense)
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "Expense added", response)
}

// GET /api/groups/:id/expenses
func (h *Handler) GetGroupExpenses(c *gin.Context) {
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

	var pagination utils.PaginationQuery
	c.ShouldBindQuery(&pagination)

	expenses, err := h.store.ExpensesForGroup(ctx, groupID, pagination.Offset(), pagination.Limit)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	responses := make([]models.ExpenseResponse, 0, len(expenses))
	for i := range expenses {
		resp, err := h.expenseResponse(ctx, &expenses[i])
		if err != nil {
			utils.FailWith(c, err)
			return
		}
		responses = append(responses, resp)
	}

	utils.SuccessResponse(c, http.StatusOK, "", responses)
}

// GET /api/expenses/:id
func (h *Handler) GetExpense(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	ctx := c.Request.Context()
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid expense ID")
		return
	}

	expense, err := h.store.ExpenseByID(ctx, expenseID)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	if err := h.authorize(c, expense.GroupID, engine.Request{ActorID: userID, Op: engine.OpViewGroup}); err != nil {
		utils.FailWith(c, err)
		return
	}

	response, err := h.expenseResponse(ctx, expense)
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", response)
}

// PUT /api/expenses/:id
func (h *Handler) UpdateExpense(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	ctx := c.Request.Context()
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid expense ID")
		return
	}

	expense, err := h.store.ExpenseByID(ctx, expenseID)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	if err := h.authorize(c, expense.GroupID, engine.Request{
		ActorID: userID,
		Op:      engine.OpEditExpense,
		PayerID: expense.PaidBy,
	}); err != nil {
		utils.FailWith(c, err)
		return
	}

	var req models.UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if req.Description != "" {
		expense.Description = req.Description
	}
	if req.Category != "" {
		expense.Category = req.Category
	}
	if req.Notes != "" {
		expense.Notes = req.Notes
	}

	amount := expense.Amount
	if req.Amount.IsPositive() {
		amount, err = engine.ToMinor(req.Amount)
		if err != nil {
			utils.FailWith(c, err)
			return
		}
	}
	currency := engine.Currency(expense.Currency)
	if req.Currency != "" {
		currency, err = h.rates.ParseCurrency(req.Currency)
		if err != nil {
			utils.FailWith(c, err)
			return
		}
	}
	strategy := engine.Strategy(expense.SplitType)
	if req.SplitType != "" {
		strategy, err = engine.ParseStrategy(req.SplitType)
		if err != nil {
			utils.FailWith(c, err)
			return
		}
	}

	conv, err := h.rates.ToBase(amount, currency)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	var participants []engine.Participant
	compute := strategy
	if len(req.Splits) > 0 {
		participants, err = h.buildParticipants(ctx, expense.GroupID, strategy, req.Splits)
	} else {
		// No new split inputs: keep the current participants, reweighted by
		// their existing shares so the new amount splits the same way.
		participants = participantsFromSplits(expense.Splits)
		compute = engine.SplitShares
	}
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	origShares, err := engine.ComputeSplits(amount, compute, participants)
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	shares, err := toBaseShares(conv, origShares)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	// Reverse the old deltas and apply the new ones in one transaction.
	oldShares := sharesFromSplits(expense.Splits)
	oldDeltas, err := engine.ExpenseDeltas(expense.PaidBy, oldShares)
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	newDeltas, err := engine.ExpenseDeltas(expense.PaidBy, shares)
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	combined := make(map[uuid.UUID]int64, len(oldDeltas)+len(newDeltas))
	for id, d := range newDeltas {
		combined[id] += d
	}
	for id, d := range oldDeltas {
		combined[id] -= d
	}

	expense.Amount = amount
	expense.Currency = string(currency)
	expense.BaseAmount = conv.BaseAmount
	expense.ExchangeRate = conv.Rate.String()
	expense.SplitType = string(strategy)
	expense.Splits = nil

	splits := splitModels(shares)
	if err := h.store.UpdateExpense(ctx, expense, splits, combined); err != nil {
		utils.FailWith(c, err)
		return
	}

	if editor, err := h.store.UserByID(ctx, userID); err == nil {
		h.store.LogActivity(ctx, &models.Activity{
			GroupID:     expense.GroupID,
			UserID:      userID,
			Type:        "expense_updated",
			ReferenceID: expense.ID,
			Description: fmt.Sprintf("%s updated \"%s\"", editor.Name, expense.Description),
		})
	}

	h.cache.Invalidate(ctx, expense.GroupID)

	expense.Splits = splits
	response, err := h.expenseResponse(ctx, expense)
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Expense updated", response)
}

// DELETE /api/expenses/:id
func (h *Handler) DeleteExpense(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	ctx := c.Request.Context()
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid expense ID")
		return
	}

	expense, err := h.store.ExpenseByID(ctx, expenseID)
	if err != nil {
		utils.FailWith(c, err)
		return
	}

	if err := h.authorize(c, expense.GroupID, engine.Request{
		ActorID: userID,
		Op:      engine.OpDeleteExpense,
		PayerID: expense.PaidBy,
	}); err != nil {
		utils.FailWith(c, err)
		return
	}

	deltas, err := engine.ExpenseDeltas(expense.PaidBy, sharesFromSplits(expense.Splits))
	if err != nil {
		utils.FailWith(c, err)
		return
	}
	for id := range deltas {
		deltas[id] = -deltas[id]
	}

	if err := h.store.DeleteExpense(ctx, expense, deltas); err != nil {
		utils.FailWith(c, err)
		return
	}

	if deleter, err := h.store.UserByID(ctx, userID); err == nil {
		h.store.LogActivity(ctx, &models.Activity{
			GroupID:     expense.GroupID,
			UserID:      userID,
			Type:        "expense_deleted",
			Description: fmt.Sprintf("%s deleted \"%s\" (%s %s)",
				deleter.Name, expense.Description, expense.Currency, engine.FromMinor(expense.Amount)),
		})
	}

	h.cache.Invalidate(ctx, expense.GroupID)
	utils.SuccessResponse(c, http.StatusOK, "Expense deleted", nil)
}

// buildParticipants translates split inputs into engine participants. Equal
// splits with no explicit inputs cover the whole group.
func (h *Handler) buildParticipants(ctx context.Context, groupID uuid.UUID, strategy engine.Strategy, inputs []models.SplitInput) ([]engine.Participant, error) {
	if len(inputs) == 0 {
		if strategy != engine.SplitEqual {
			return nil, &engine.ValidationError{Reason: fmt.Sprintf("splits required for %s split type", strategy)}
		}
		members, err := h.store.Members(ctx, groupID)
		if err != nil {
			return nil, err
		}
		participants := make([]engine.Participant, len(members))
		for i, m := range members {
			participants[i] = engine.Participant{MemberID: m.UserID}
		}
		return participants, nil
	}

	participants := make([]engine.Participant, len(inputs))
	for i, in := range inputs {
		uid, err := uuid.Parse(in.UserID)
		if err != nil {
			return nil, &engine.ValidationError{Reason: fmt.Sprintf("invalid user ID: %s", in.UserID)}
		}
		p := engine.Participant{MemberID: uid}
		switch strategy {
		case engine.SplitExact:
			p.Amount, err = engine.ToMinor(in.Value)
			if err != nil {
				return nil, err
			}
		case engine.SplitPercentage:
			p.Percent = in.Value
		case engine.SplitShares:
			if !in.Value.Equal(in.Value.Truncate(0)) {
				return nil, &engine.ValidationError{Reason: "share counts must be whole numbers"}
			}
			p.Shares = in.Value.IntPart()
		}
		participants[i] = p
	}
	return participants, nil
}

// toBaseShares carries shares computed in the original currency over to the
// base currency. The base amount is reallocated proportionally, so the base
// shares always sum to it exactly regardless of conversion rounding.
func toBaseShares(conv engine.Conversion, shares []engine.Share) ([]engine.Share, error) {
	if conv.OriginalCurrency == engine.BaseCurrency {
		return shares, nil
	}
	weights := make([]engine.Participant, len(shares))
	for i, s := range shares {
		weights[i] = engine.Participant{MemberID: s.MemberID, Shares: s.Amount}
	}
	based, err := engine.ComputeSplits(conv.BaseAmount, engine.SplitShares, weights)
	if err != nil {
		return nil, err
	}
	for i := range based {
		based[i].Percent = shares[i].Percent
	}
	return based, nil
}

func splitModels(shares []engine.Share) []models.ExpenseSplit {
	splits := make([]models.ExpenseSplit, len(shares))
	for i, s := range shares {
		splits[i] = models.ExpenseSplit{
			UserID:     s.MemberID,
			OwedAmount: s.Amount,
			Percent:    s.Percent.String(),
		}
	}
	return splits
}

func sharesFromSplits(splits []models.ExpenseSplit) []engine.Share {
	shares := make([]engine.Share, len(splits))
	for i, s := range splits {
		shares[i] = engine.Share{MemberID: s.UserID, Amount: s.OwedAmount}
	}
	return shares
}

func participantsFromSplits(splits []models.ExpenseSplit) []engine.Participant {
	participants := make([]engine.Participant, len(splits))
	for i, s := range splits {
		participants[i] = engine.Participant{MemberID: s.UserID, Shares: s.OwedAmount}
	}
	return participants
}

// expenseResponse renders an expense with user names resolved.
func (h *Handler) expenseResponse(ctx context.Context, e *models.Expense) (models.ExpenseResponse, error) {
	members, err := h.store.Members(ctx, e.GroupID)
	if err != nil {
		return models.ExpenseResponse{}, err
	}
	names := make(map[uuid.UUID]string, len(members))
	for _, m := range members {
		names[m.UserID] = m.User.Name
	}

	payerName := names[e.PaidBy]
	if payerName == "" {
		if payer, err := h.store.UserByID(ctx, e.PaidBy); err == nil {
			payerName = payer.Name
		}
	}

	splits := make([]models.SplitResponse, 0, len(e.Splits))
	for _, s := range e.Splits {
		splits = append(splits, models.SplitResponse{
			UserID:     s.UserID,
			UserName:   names[s.UserID],
			OwedAmount: engine.FromMinor(s.OwedAmount),
			Percent:    s.Percent,
		})
	}

	return models.ExpenseResponse{
		ID:           e.ID,
		GroupID:      e.GroupID,
		PaidBy:       e.PaidBy,
		PayerName:    payerName,
		Description:  e.Description,
		Amount:       engine.FromMinor(e.Amount),
		Currency:     e.Currency,
		BaseAmount:   engine.FromMinor(e.BaseAmount),
		ExchangeRate: e.ExchangeRate,
		Category:     e.Category,
		SplitType:    e.SplitType,
		Notes:        e.Notes,
		ExpenseDate:  e.ExpenseDate,
		Splits:       splits,
		CreatedAt:    e.CreatedAt,
	}, nil
}
