package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skolu-backend/engine"
	"skolu-backend/logger"
	"skolu-backend/models"
	"skolu-backend/store"
)

// InvitationService invites people to groups by email or phone. Registered
// users are added directly; everyone else gets a pending invitation that is
// auto-accepted when they register.
type InvitationService struct {
	store    store.Store
	notifier *NotificationService
}

func NewInvitationService(st store.Store, notifier *NotificationService) *InvitationService {
	return &InvitationService{store: st, notifier: notifier}
}

func (s *InvitationService) InviteToGroup(ctx context.Context, groupID, invitedBy uuid.UUID, email, phone string) {
	pending, err := s.store.HasPendingInvitation(ctx, groupID, email, phone)
	if err == nil && pending {
		logger.Log.Debug("invitation already pending",
			zap.String("group_id", groupID.String()), zap.String("email", email))
		return
	}

	// Already registered? Add them straight away.
	if email != "" {
		if user, err := s.store.UserByEmail(ctx, email); err == nil {
			if _, err := s.store.Member(ctx, groupID, user.ID); err != nil {
				s.store.AddMember(ctx, &models.GroupMember{
					GroupID: groupID,
					UserID:  user.ID,
					Role:    engine.RoleMember,
				})
				logger.Log.Info("added existing user to group",
					zap.String("group_id", groupID.String()), zap.String("email", email))
			}
			return
		}
	}

	invitation := models.Invitation{
		GroupID:   groupID,
		InvitedBy: invitedBy,
		Email:     email,
		Phone:     phone,
		Status:    models.InvitationPending,
	}
	if err := s.store.CreateInvitation(ctx, &invitation); err != nil {
		logger.Log.Error("failed to create invitation", zap.Error(err))
		return
	}

	if email != "" {
		inviter, err := s.store.UserByID(ctx, invitedBy)
		group, gerr := s.store.GroupByID(ctx, groupID)
		if err == nil && gerr == nil {
			s.notifier.NotifyInvitation(email, inviter.Name, group.Name)
		}
	}

	logger.Log.Info("invitation sent",
		zap.String("group_id", groupID.String()),
		zap.String("email", email), zap.String("phone", phone))
}

// AcceptPendingInvitations joins a freshly registered user into every group
// they were invited to before signing up.
func (s *InvitationService) AcceptPendingInvitations(ctx context.Context, user models.User) {
	invitations, err := s.store.PendingInvitationsFor(ctx, user.Email, user.Phone)
	if err != nil {
		logger.Log.Error("failed to load pending invitations", zap.Error(err))
		return
	}

	for i := range invitations {
		inv := invitations[i]
		if err := s.store.AcceptInvitation(ctx, &inv, user.ID); err != nil {
			logger.Log.Error("failed to accept invitation",
				zap.String("invitation_id", inv.ID.String()), zap.Error(err))
			continue
		}

		if group, err := s.store.GroupByID(ctx, inv.GroupID); err == nil {
			s.store.LogActivity(ctx, &models.Activity{
				GroupID:     inv.GroupID,
				UserID:      user.ID,
				Type:        "member_joined",
				Description: user.Name + " joined " + group.Name,
			})
		}
	}
}
