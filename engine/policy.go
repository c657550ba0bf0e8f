package engine

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the closed set of membership roles. Any numeric or free-form role
// coding on the wire is translated here, once, at the boundary; everything
// inward of the handlers uses this enum only.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleGuest  Role = "guest"
)

// ParseRole accepts the canonical names plus the legacy numeric codes
// (1=admin, 2=member, 3=guest) some older clients still send.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin", "1":
		return RoleAdmin, nil
	case "member", "2":
		return RoleMember, nil
	case "guest", "3":
		return RoleGuest, nil
	}
	return "", validationErrf("invalid role: %s", s)
}

// Operation is a mutation (or view) the policy gate can authorize.
type Operation string

const (
	OpViewGroup     Operation = "view_group"
	OpAddExpense    Operation = "add_expense"
	OpEditExpense   Operation = "edit_expense"
	OpDeleteExpense Operation = "delete_expense"
	OpAddMember     Operation = "add_member"
	OpRemoveMember  Operation = "remove_member"
	OpChangeRole    Operation = "change_role"
	OpLeaveGroup    Operation = "leave_group"
	OpDeleteGroup   Operation = "delete_group"
)

// MemberSnapshot is the policy gate's view of one group member.
type MemberSnapshot struct {
	ID      uuid.UUID
	Email   string
	Role    Role
	Balance int64 // base-currency minor units
}

// GroupSnapshot is the state the gate evaluates against. The gate itself is
// stateless; callers load a snapshot and ask for a decision.
type GroupSnapshot struct {
	Members []MemberSnapshot
}

// Request describes the mutation an actor wants to perform. TargetID is set
// for member-directed operations, PayerID for expense edits/deletes, NewRole
// for role changes and add-member grants, Email for duplicate checks on
// add-member.
type Request struct {
	ActorID  uuid.UUID
	Op       Operation
	TargetID uuid.UUID
	PayerID  uuid.UUID
	NewRole  Role
	Email    string
}

// Decision is the gate's answer. A denial always carries a human-readable
// reason; callers must never have to render a generic "failed".
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision            { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// Err converts a denial into a PolicyError, nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &PolicyError{Reason: d.Reason}
}

func (g GroupSnapshot) find(id uuid.UUID) (MemberSnapshot, bool) {
	for _, m := range g.Members {
		if m.ID == id {
			return m, true
		}
	}
	return MemberSnapshot{}, false
}

func (g GroupSnapshot) adminCount() int {
	n := 0
	for _, m := range g.Members {
		if m.Role == RoleAdmin {
			n++
		}
	}
	return n
}

func settled(balance int64) bool { return abs(balance) <= Epsilon }

// Authorize evaluates one request against the group snapshot. Roles are not
// hierarchically inherited: every operation names the roles it accepts.
func Authorize(g GroupSnapshot, req Request) Decision {
	actor, ok := g.find(req.ActorID)
	if !ok {
		return deny("you are not a member of this group")
	}

	switch req.Op {
	case OpViewGroup:
		// Any membership, guests included.
		return allow()

	case OpAddExpense:
		if actor.Role != RoleAdmin && actor.Role != RoleMember {
			return deny("guests cannot add expenses")
		}
		if len(g.Members) < 1 {
			return deny("group has no members")
		}
		return allow()

	case OpEditExpense, OpDeleteExpense:
		if actor.Role == RoleAdmin || actor.ID == req.PayerID {
			return allow()
		}
		return deny("only the payer or an admin can modify this expense")

	case OpAddMember:
		if actor.Role != RoleAdmin && actor.Role != RoleMember {
			return deny("guests cannot add members")
		}
		if req.NewRole == RoleAdmin && actor.Role != RoleAdmin {
			return deny("only admins can grant the admin role")
		}
		for _, m := range g.Members {
			if req.Email != "" && strings.EqualFold(m.Email, req.Email) {
				return deny("user is already a member of this group")
			}
			if req.TargetID != uuid.Nil && m.ID == req.TargetID {
				return deny("user is already a member of this group")
			}
		}
		return allow()

	case OpRemoveMember:
		if actor.Role != RoleAdmin {
			return deny("only admins can remove members")
		}
		if req.TargetID == req.ActorID {
			return deny("use leave group to remove yourself")
		}
		target, ok := g.find(req.TargetID)
		if !ok {
			return deny("target is not a member of this group")
		}
		if !settled(target.Balance) {
			return deny("member has an unsettled balance of " + FromMinor(target.Balance).String())
		}
		if target.Role == RoleAdmin && g.adminCount() == 1 {
			return deny("cannot remove the only admin")
		}
		return allow()

	case OpChangeRole:
		if actor.Role != RoleAdmin {
			return deny("only admins can change roles")
		}
		target, ok := g.find(req.TargetID)
		if !ok {
			return deny("target is not a member of this group")
		}
		// Only one admin and the actor is an admin means actor == target, so
		// demoting the last admin is always a self-demotion.
		if target.Role == RoleAdmin && req.NewRole != RoleAdmin && g.adminCount() == 1 {
			return deny("promote another member to admin before stepping down")
		}
		return allow()

	case OpLeaveGroup:
		if !settled(actor.Balance) {
			return deny("settle your balance of " + FromMinor(actor.Balance).String() + " before leaving")
		}
		if len(g.Members) == 1 {
			return deny("you are the only member; delete the group instead")
		}
		if actor.Role == RoleAdmin && g.adminCount() == 1 {
			return deny("promote another member to admin before leaving")
		}
		return allow()

	case OpDeleteGroup:
		if actor.Role != RoleAdmin {
			return deny("only admins can delete the group")
		}
		if len(g.Members) > 1 {
			for _, m := range g.Members {
				if !settled(m.Balance) {
					return deny("group has unsettled balances")
				}
			}
		}
		return allow()
	}

	return deny("unknown operation")
}

// ValidateRemoval re-checks the removal invariants against current state.
// Stores call it inside the removal transaction, where a concurrent expense
// can no longer move the balance after the policy gate ran.
func ValidateRemoval(balance int64, role Role, adminCount int64) error {
	if !settled(balance) {
		return &PolicyError{Reason: "member has an unsettled balance of " + FromMinor(balance).String()}
	}
	if role == RoleAdmin && adminCount <= 1 {
		return &PolicyError{Reason: "group must retain at least one admin"}
	}
	return nil
}

// RoleTransfer reports whether promoting target to admin must demote the actor
// in the same operation. The group never passes through a dual-admin state when
// its sole admin hands over: exactly one admin swaps for another.
func RoleTransfer(g GroupSnapshot, actorID, targetID uuid.UUID, newRole Role) bool {
	actor, ok := g.find(actorID)
	if !ok {
		return false
	}
	return newRole == RoleAdmin && actorID != targetID &&
		actor.Role == RoleAdmin && g.adminCount() == 1
}
