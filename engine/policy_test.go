package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type policyGroup struct {
	admin   uuid.UUID
	member2 uuid.UUID
	guest   uuid.UUID
}

func snapshot() (GroupSnapshot, policyGroup) {
	g := policyGroup{admin: uuid.New(), member2: uuid.New(), guest: uuid.New()}
	return GroupSnapshot{Members: []MemberSnapshot{
		{ID: g.admin, Email: "ona@example.com", Role: RoleAdmin},
		{ID: g.member2, Email: "tomas@example.com", Role: RoleMember},
		{ID: g.guest, Email: "ruta@example.com", Role: RoleGuest},
	}}, g
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"admin": RoleAdmin, "Member": RoleMember, "guest": RoleGuest,
		// Legacy numeric codes are translated once, here at the edge.
		"1": RoleAdmin, "2": RoleMember, "3": RoleGuest,
	} {
		got, err := ParseRole(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseRole("owner")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestAuthorizeViewAndExpenses(t *testing.T) {
	snap, g := snapshot()
	outsider := uuid.New()

	tests := []struct {
		name    string
		req     Request
		allowed bool
		reason  string
	}{
		{"guest may view", Request{ActorID: g.guest, Op: OpViewGroup}, true, ""},
		{"outsider may not view", Request{ActorID: outsider, Op: OpViewGroup}, false, "not a member"},
		{"member may add expense", Request{ActorID: g.member2, Op: OpAddExpense}, true, ""},
		{"admin may add expense", Request{ActorID: g.admin, Op: OpAddExpense}, true, ""},
		{"guest may not add expense", Request{ActorID: g.guest, Op: OpAddExpense}, false, "guests cannot"},
		{"payer may edit own expense", Request{ActorID: g.member2, Op: OpEditExpense, PayerID: g.member2}, true, ""},
		{"admin may edit any expense", Request{ActorID: g.admin, Op: OpEditExpense, PayerID: g.member2}, true, ""},
		{"non-payer member may not edit", Request{ActorID: g.member2, Op: OpEditExpense, PayerID: g.admin}, false, "only the payer or an admin"},
		{"non-payer member may not delete", Request{ActorID: g.member2, Op: OpDeleteExpense, PayerID: g.admin}, false, "only the payer or an admin"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := Authorize(snap, tc.req)
			assert.Equal(t, tc.allowed, d.Allowed)
			if !tc.allowed {
				require.NotEmpty(t, d.Reason, "denials must carry a reason")
				assert.Contains(t, d.Reason, tc.reason)
				require.Error(t, d.Err())
			} else {
				require.NoError(t, d.Err())
			}
		})
	}
}

func TestAuthorizeMembership(t *testing.T) {
	snap, g := snapshot()

	t.Run("member may add a new member", func(t *testing.T) {
		d := Authorize(snap, Request{ActorID: g.member2, Op: OpAddMember, Email: "new@example.com"})
		assert.True(t, d.Allowed)
	})

	t.Run("member may not grant the admin role", func(t *testing.T) {
		d := Authorize(snap, Request{ActorID: g.member2, Op: OpAddMember, NewRole: RoleAdmin, Email: "new@example.com"})
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "only admins can grant")
	})

	t.Run("admin may add an admin", func(t *testing.T) {
		d := Authorize(snap, Request{ActorID: g.admin, Op: OpAddMember, NewRole: RoleAdmin, Email: "new@example.com"})
		assert.True(t, d.Allowed)
	})

	t.Run("duplicate email rejected case-insensitively", func(t *testing.T) {
		d := Authorize(snap, Request{ActorID: g.member2, Op: OpAddMember, Email: "Tomas@Example.com"})
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "already a member")
	})

	t.Run("only admin removes members", func(t *testing.T) {
		d := Authorize(snap, Request{ActorID: g.member2, Op: OpRemoveMember, TargetID: g.guest})
		assert.False(t, d.Allowed)
	})

	t.Run("admin removes settled member", func(t *testing.T) {
		d := Authorize(snap, Request{ActorID: g.admin, Op: OpRemoveMember, TargetID: g.guest})
		assert.True(t, d.Allowed)
	})

	t.Run("unsettled member is always protected", func(t *testing.T) {
		dirty, _ := snapshot()
		dirty.Members[1].Balance = -1500
		d := Authorize(dirty, Request{ActorID: dirty.Members[0].ID, Op: OpRemoveMember, TargetID: dirty.Members[1].ID})
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "unsettled balance")
	})

	t.Run("balance within epsilon counts as settled", func(t *testing.T) {
		near, _ := snapshot()
		near.Members[1].Balance = 1
		d := Authorize(near, Request{ActorID: near.Members[0].ID, Op: OpRemoveMember, TargetID: near.Members[1].ID})
		assert.True(t, d.Allowed)
	})

	t.Run("sole admin cannot be removed", func(t *testing.T) {
		d := Authorize(snap, Request{ActorID: g.admin, Op: OpRemoveMember, TargetID: g.admin})
		assert.False(t, d.Allowed)
	})
}

func TestAuthorizeRoleChange(t *testing.T) {
	snap, g := snapshot()

	t.Run("admin promotes member", func(t *testing.T) {
		d := Authorize(snap, Request{ActorID: g.admin, Op: OpChangeRole, TargetID: g.member2, NewRole: RoleAdmin})
		assert.True(t, d.Allowed)
	})

	t.Run("sole admin cannot demote self", func(t *testing.T) {
		d := Authorize(snap, Request{ActorID: g.admin, Op: OpChangeRole, TargetID: g.admin, NewRole: RoleMember})
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "promote another member")
	})

	t.Run("second admin may be demoted", func(t *testing.T) {
		two, _ := snapshot()
		two.Members[1].Role = RoleAdmin
		d := Authorize(two, Request{ActorID: two.Members[0].ID, Op: OpChangeRole, TargetID: two.Members[1].ID, NewRole: RoleMember})
		assert.True(t, d.Allowed)
	})

	t.Run("member cannot change roles", func(t *testing.T) {
		d := Authorize(snap, Request{ActorID: g.member2, Op: OpChangeRole, TargetID: g.guest, NewRole: RoleMember})
		assert.False(t, d.Allowed)
	})
}

func TestValidateRemoval(t *testing.T) {
	// The store re-runs these checks inside the removal transaction, where a
	// concurrently committed expense can no longer move the balance.
	tests := []struct {
		name       string
		balance    int64
		role       Role
		adminCount int64
		wantDenied bool
	}{
		{"settled member", 0, RoleMember, 1, false},
		{"epsilon residue still counts as settled", Epsilon, RoleMember, 1, false},
		{"unsettled member", -3000, RoleMember, 1, true},
		{"balance moved after the gate ran", 2, RoleMember, 1, true},
		{"sole admin", 0, RoleAdmin, 1, true},
		{"second admin", 0, RoleAdmin, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRemoval(tt.balance, tt.role, tt.adminCount)
			if !tt.wantDenied {
				assert.NoError(t, err)
				return
			}
			var perr *PolicyError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestRoleTransfer(t *testing.T) {
	snap, g := snapshot()

	// Sole admin promoting someone else hands over the admin seat: exactly one
	// admin swap, never a dual-admin state.
	assert.True(t, RoleTransfer(snap, g.admin, g.member2, RoleAdmin))

	two, _ := snapshot()
	two.Members[1].Role = RoleAdmin
	assert.False(t, RoleTransfer(two, two.Members[0].ID, two.Members[2].ID, RoleAdmin))

	assert.False(t, RoleTransfer(snap, g.admin, g.member2, RoleMember))
	assert.False(t, RoleTransfer(snap, g.admin, g.admin, RoleAdmin))
}

func TestAuthorizeLeaveAndDelete(t *testing.T) {
	snap, g := snapshot()

	t.Run("settled member may leave", func(t *testing.T) {
		d := Authorize(snap, Request{ActorID: g.member2, Op: OpLeaveGroup})
		assert.True(t, d.Allowed)
	})

	t.Run("unsettled member may not leave", func(t *testing.T) {
		dirty, _ := snapshot()
		dirty.Members[1].Balance = 2000
		d := Authorize(dirty, Request{ActorID: dirty.Members[1].ID, Op: OpLeaveGroup})
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "settle your balance")
	})

	t.Run("sole admin may not leave", func(t *testing.T) {
		d := Authorize(snap, Request{ActorID: g.admin, Op: OpLeaveGroup})
		assert.False(t, d.Allowed)
	})

	t.Run("sole member may not leave", func(t *testing.T) {
		solo := GroupSnapshot{Members: []MemberSnapshot{{ID: g.admin, Role: RoleAdmin}}}
		d := Authorize(solo, Request{ActorID: g.admin, Op: OpLeaveGroup})
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "only member")
	})

	t.Run("admin deletes settled group", func(t *testing.T) {
		d := Authorize(snap, Request{ActorID: g.admin, Op: OpDeleteGroup})
		assert.True(t, d.Allowed)
	})

	t.Run("unsettled group is protected", func(t *testing.T) {
		dirty, _ := snapshot()
		dirty.Members[2].Balance = -100
		d := Authorize(dirty, Request{ActorID: dirty.Members[0].ID, Op: OpDeleteGroup})
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "unsettled")
	})

	t.Run("sole member may delete regardless of balance", func(t *testing.T) {
		solo := GroupSnapshot{Members: []MemberSnapshot{{ID: g.admin, Role: RoleAdmin, Balance: 5000}}}
		d := Authorize(solo, Request{ActorID: g.admin, Op: OpDeleteGroup})
		assert.True(t, d.Allowed)
	})

	t.Run("member may not delete group", func(t *testing.T) {
		d := Authorize(snap, Request{ActorID: g.member2, Op: OpDeleteGroup})
		assert.False(t, d.Allowed)
	})
}
