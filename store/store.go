package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"skolu-backend/engine"
	"skolu-backend/models"
)

// Store is the persistence boundary. The engine stays pure; every balance
// mutation goes through one of the transactional methods below, which apply
// the engine's per-member deltas atomically and verify the conservation law
// before committing.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *models.User) error
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByPhone(ctx context.Context, phone string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error)

	// Groups
	CreateGroup(ctx context.Context, g *models.Group, creatorID uuid.UUID) error
	GroupByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
	GroupsForUser(ctx context.Context, userID uuid.UUID) ([]models.Group, error)
	UpdateGroup(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	DeleteGroup(ctx context.Context, id uuid.UUID) error

	// Members
	Members(ctx context.Context, groupID uuid.UUID) ([]models.GroupMember, error)
	Member(ctx context.Context, groupID, userID uuid.UUID) (*models.GroupMember, error)
	AddMember(ctx context.Context, m *models.GroupMember) error
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
	// SetRoles updates several members' roles in one transaction, so an
	// admin handover never leaves the group in a dual-admin or zero-admin
	// state.
	SetRoles(ctx context.Context, groupID uuid.UUID, roles map[uuid.UUID]engine.Role) error
	// Snapshot loads the policy gate's view of a group.
	Snapshot(ctx context.Context, groupID uuid.UUID) (engine.GroupSnapshot, error)

	// Expenses. Deltas are base-currency minor units per member.
	CreateExpense(ctx context.Context, e *models.Expense, splits []models.ExpenseSplit, deltas map[uuid.UUID]int64) error
	ExpenseByID(ctx context.Context, id uuid.UUID) (*models.Expense, error)
	ExpensesForGroup(ctx context.Context, groupID uuid.UUID, offset, limit int) ([]models.Expense, error)
	// UpdateExpense replaces the expense and its splits and applies the
	// combined reverse-old/apply-new deltas in the same transaction.
	UpdateExpense(ctx context.Context, e *models.Expense, splits []models.ExpenseSplit, deltas map[uuid.UUID]int64) error
	DeleteExpense(ctx context.Context, e *models.Expense, deltas map[uuid.UUID]int64) error

	// Settlements
	CreateSettlement(ctx context.Context, s *models.Settlement, deltas map[uuid.UUID]int64) error
	SettlementsForGroup(ctx context.Context, groupID uuid.UUID) ([]models.Settlement, error)

	// Balances (base-currency minor units)
	GroupBalances(ctx context.Context, groupID uuid.UUID) (map[uuid.UUID]int64, error)
	TotalSpent(ctx context.Context, groupID uuid.UUID) (int64, error)

	// Activity
	LogActivity(ctx context.Context, a *models.Activity) error
	ActivityForGroup(ctx context.Context, groupID uuid.UUID, offset, limit int) ([]models.Activity, error)
	ActivityForUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]models.Activity, error)

	// Invitations
	CreateInvitation(ctx context.Context, inv *models.Invitation) error
	HasPendingInvitation(ctx context.Context, groupID uuid.UUID, email, phone string) (bool, error)
	PendingInvitationsFor(ctx context.Context, email, phone string) ([]models.Invitation, error)
	AcceptInvitation(ctx context.Context, inv *models.Invitation, userID uuid.UUID) error
}

// groupLocks serializes ledger mutations per group. Reads stay concurrent;
// writers to the same group queue up so the conservation law is checked
// against a stable view.
type groupLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newGroupLocks() *groupLocks {
	return &groupLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (g *groupLocks) lock(groupID uuid.UUID) func() {
	g.mu.Lock()
	l, ok := g.locks[groupID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[groupID] = l
	}
	g.mu.Unlock()

	l.Lock()
	return l.Unlock
}
