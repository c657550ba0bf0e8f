package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"skolu-backend/engine"
	"skolu-backend/models"
)

// GormStore implements Store on top of gorm/postgres.
type GormStore struct {
	db    *gorm.DB
	locks *groupLocks
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, locks: newGroupLocks()}
}

// ---- users ----

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *GormStore) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *GormStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *GormStore) UserByPhone(ctx context.Context, phone string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("phone = ?", phone).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *GormStore) UpdateUser(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Save(u).Error
}

func (s *GormStore) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	var users []models.User
	pattern := "%" + query + "%"
	err := s.db.WithContext(ctx).
		Where("email ILIKE ? OR name ILIKE ? OR phone = ?", pattern, pattern, query).
		Limit(limit).Find(&users).Error
	return users, err
}

// ---- groups ----

func (s *GormStore) CreateGroup(ctx context.Context, g *models.Group, creatorID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(g).Error; err != nil {
			return err
		}
		return tx.Create(&models.GroupMember{
			GroupID: g.ID,
			UserID:  creatorID,
			Role:    engine.RoleAdmin,
		}).Error
	})
}

func (s *GormStore) GroupByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	var g models.Group
	if err := s.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *GormStore) GroupsForUser(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	var groups []models.Group
	err := s.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ?", userID).
		Order("groups.created_at DESC").
		Find(&groups).Error
	return groups, err
}

func (s *GormStore) UpdateGroup(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return s.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", id).Updates(updates).Error
}

// DeleteGroup cascade-deletes everything the group owns.
func (s *GormStore) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.lock(id)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expense_id IN (?)",
			tx.Model(&models.Expense{}).Select("id").Where("group_id = ?", id),
		).Delete(&models.ExpenseSplit{}).Error; err != nil {
			return err
		}
		for _, m := range []interface{}{
			&models.Expense{}, &models.Settlement{}, &models.Activity{},
			&models.Invitation{}, &models.GroupMember{},
		} {
			if err := tx.Where("group_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Group{}, "id = ?", id).Error
	})
}

// ---- members ----

func (s *GormStore) Members(ctx context.Context, groupID uuid.UUID) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := s.db.WithContext(ctx).Where("group_id = ?", groupID).
		Preload("User").Order("joined_at").Find(&members).Error
	return members, err
}

func (s *GormStore) Member(ctx context.Context, groupID, userID uuid.UUID) (*models.GroupMember, error) {
	var m models.GroupMember
	err := s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *GormStore) AddMember(ctx context.Context, m *models.GroupMember) error {
	return s.db.WithContext(ctx).Create(m).Error
}

// RemoveMember deletes the membership row. The settled-balance and sole-admin
// invariants are re-verified under the group lock: the policy gate ran on a
// snapshot, and an expense committed since could have changed either.
func (s *GormStore) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	unlock := s.locks.lock(groupID)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.GroupMember
		if err := tx.Where("group_id = ? AND user_id = ?", groupID, userID).First(&m).Error; err != nil {
			return err
		}
		var admins int64
		if err := tx.Model(&models.GroupMember{}).
			Where("group_id = ? AND role = ?", groupID, engine.RoleAdmin).
			Count(&admins).Error; err != nil {
			return err
		}
		if err := engine.ValidateRemoval(m.Balance, m.Role, admins); err != nil {
			return err
		}
		return tx.Where("group_id = ? AND user_id = ?", groupID, userID).
			Delete(&models.GroupMember{}).Error
	})
}

func (s *GormStore) SetRoles(ctx context.Context, groupID uuid.UUID, roles map[uuid.UUID]engine.Role) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for userID, role := range roles {
			res := tx.Model(&models.GroupMember{}).
				Where("group_id = ? AND user_id = ?", groupID, userID).
				Update("role", role)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return nil
	})
}

func (s *GormStore) Snapshot(ctx context.Context, groupID uuid.UUID) (engine.GroupSnapshot, error) {
	members, err := s.Members(ctx, groupID)
	if err != nil {
		return engine.GroupSnapshot{}, err
	}
	snap := engine.GroupSnapshot{Members: make([]engine.MemberSnapshot, len(members))}
	for i, m := range members {
		snap.Members[i] = engine.MemberSnapshot{
			ID:      m.UserID,
			Email:   m.User.Email,
			Role:    m.Role,
			Balance: m.Balance,
		}
	}
	return snap, nil
}

// ---- expenses ----

func (s *GormStore) CreateExpense(ctx context.Context, e *models.Expense, splits []models.ExpenseSplit, deltas map[uuid.UUID]int64) error {
	unlock := s.locks.lock(e.GroupID)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(e).Error; err != nil {
			return err
		}
		for i := range splits {
			splits[i].ExpenseID = e.ID
			if err := tx.Create(&splits[i]).Error; err != nil {
				return err
			}
		}
		return applyDeltas(tx, e.GroupID, deltas)
	})
}

func (s *GormStore) ExpenseByID(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	var e models.Expense
	err := s.db.WithContext(ctx).Preload("Splits").First(&e, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *GormStore) ExpensesForGroup(ctx context.Context, groupID uuid.UUID, offset, limit int) ([]models.Expense, error) {
	var expenses []models.Expense
	err := s.db.WithContext(ctx).Where("group_id = ?", groupID).
		Preload("Splits").
		Order("expense_date DESC, created_at DESC").
		Offset(offset).Limit(limit).
		Find(&expenses).Error
	return expenses, err
}

func (s *GormStore) UpdateExpense(ctx context.Context, e *models.Expense, splits []models.ExpenseSplit, deltas map[uuid.UUID]int64) error {
	unlock := s.locks.lock(e.GroupID)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expense_id = ?", e.ID).Delete(&models.ExpenseSplit{}).Error; err != nil {
			return err
		}
		if err := tx.Save(e).Error; err != nil {
			return err
		}
		for i := range splits {
			splits[i].ExpenseID = e.ID
			if err := tx.Create(&splits[i]).Error; err != nil {
				return err
			}
		}
		return applyDeltas(tx, e.GroupID, deltas)
	})
}

func (s *GormStore) DeleteExpense(ctx context.Context, e *models.Expense, deltas map[uuid.UUID]int64) error {
	unlock := s.locks.lock(e.GroupID)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expense_id = ?", e.ID).Delete(&models.ExpenseSplit{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Expense{}, "id = ?", e.ID).Error; err != nil {
			return err
		}
		return applyDeltas(tx, e.GroupID, deltas)
	})
}

// ---- settlements ----

// CreateSettlement re-validates the debt bound against balances read inside
// the locked transaction, so a concurrent mutation between the handler's check
// and the commit cannot let a payment exceed what is still owed.
func (s *GormStore) CreateSettlement(ctx context.Context, st *models.Settlement, deltas map[uuid.UUID]int64) error {
	unlock := s.locks.lock(st.GroupID)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var members []models.GroupMember
		if err := tx.Where("group_id = ?", st.GroupID).Find(&members).Error; err != nil {
			return err
		}
		balances := make(map[uuid.UUID]int64, len(members))
		for _, m := range members {
			balances[m.UserID] = m.Balance
		}
		transfer := engine.Transfer{From: st.PaidBy, To: st.PaidTo, Amount: st.BaseAmount}
		if err := engine.ValidateSettlement(balances, transfer); err != nil {
			return err
		}
		if err := tx.Create(st).Error; err != nil {
			return err
		}
		return applyDeltas(tx, st.GroupID, deltas)
	})
}

func (s *GormStore) SettlementsForGroup(ctx context.Context, groupID uuid.UUID) ([]models.Settlement, error) {
	var settlements []models.Settlement
	err := s.db.WithContext(ctx).Where("group_id = ?", groupID).
		Preload("Payer").Preload("Payee").
		Order("created_at DESC").
		Find(&settlements).Error
	return settlements, err
}

// ---- balances ----

func (s *GormStore) GroupBalances(ctx context.Context, groupID uuid.UUID) (map[uuid.UUID]int64, error) {
	var members []models.GroupMember
	if err := s.db.WithContext(ctx).Where("group_id = ?", groupID).Find(&members).Error; err != nil {
		return nil, err
	}
	balances := make(map[uuid.UUID]int64, len(members))
	for _, m := range members {
		balances[m.UserID] = m.Balance
	}
	return balances, nil
}

func (s *GormStore) TotalSpent(ctx context.Context, groupID uuid.UUID) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.Expense{}).
		Where("group_id = ?", groupID).
		Select("COALESCE(SUM(base_amount), 0)").Scan(&total).Error
	return total, err
}

// ---- activity ----

func (s *GormStore) LogActivity(ctx context.Context, a *models.Activity) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *GormStore) ActivityForGroup(ctx context.Context, groupID uuid.UUID, offset, limit int) ([]models.Activity, error) {
	var activity []models.Activity
	err := s.db.WithContext(ctx).Where("group_id = ?", groupID).
		Preload("User").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&activity).Error
	return activity, err
}

func (s *GormStore) ActivityForUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]models.Activity, error) {
	var activity []models.Activity
	err := s.db.WithContext(ctx).
		Where("group_id IN (?)",
			s.db.Model(&models.GroupMember{}).Select("group_id").Where("user_id = ?", userID)).
		Preload("User").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&activity).Error
	return activity, err
}

// ---- invitations ----

func (s *GormStore) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	return s.db.WithContext(ctx).Create(inv).Error
}

func (s *GormStore) HasPendingInvitation(ctx context.Context, groupID uuid.UUID, email, phone string) (bool, error) {
	q := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("group_id = ? AND status = ?", groupID, models.InvitationPending)
	if email != "" {
		q = q.Where("email = ?", email)
	} else if phone != "" {
		q = q.Where("phone = ?", phone)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) PendingInvitationsFor(ctx context.Context, email, phone string) ([]models.Invitation, error) {
	var invitations []models.Invitation
	err := s.db.WithContext(ctx).
		Where("(email = ? OR phone = ?) AND status = ?", email, phone, models.InvitationPending).
		Find(&invitations).Error
	return invitations, err
}

func (s *GormStore) AcceptInvitation(ctx context.Context, inv *models.Invitation, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.GroupMember{
			GroupID: inv.GroupID,
			UserID:  userID,
			Role:    engine.RoleMember,
		}).Error; err != nil {
			return err
		}
		return tx.Model(inv).Update("status", models.InvitationAccepted).Error
	})
}

// applyDeltas mutates member balances inside the surrounding transaction and
// verifies the group's conservation law. A nonzero sum means a bug upstream;
// the error aborts the transaction so no partial ledger change ever lands.
func applyDeltas(tx *gorm.DB, groupID uuid.UUID, deltas map[uuid.UUID]int64) error {
	for userID, delta := range deltas {
		if delta == 0 {
			continue
		}
		res := tx.Model(&models.GroupMember{}).
			Where("group_id = ? AND user_id = ?", groupID, userID).
			Update("balance", gorm.Expr("balance + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &engine.ValidationError{
				Reason: fmt.Sprintf("user %s is not a member of this group", userID),
			}
		}
	}

	var sum int64
	err := tx.Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Select("COALESCE(SUM(balance), 0)").Scan(&sum).Error
	if err != nil {
		return err
	}
	if !engine.WithinEpsilon(sum, 0) {
		return &engine.ConsistencyError{
			Reason: fmt.Sprintf("group %s balances sum to %d after applying deltas", groupID, sum),
		}
	}
	return nil
}
