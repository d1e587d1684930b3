package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"smartwindow-hub/internal/model"
	"smartwindow-hub/internal/store"
)

// MobileService tracks push tokens per user. Registration is
// idempotent: re-registering an existing token just moves it to the
// calling user, which is what happens when someone signs into a new
// account on the same phone.
type MobileService struct {
	repo *store.Repository
}

func NewMobileService(repo *store.Repository) *MobileService {
	return &MobileService{repo: repo}
}

func (s *MobileService) RegisterToken(ctx context.Context, userID uuid.UUID, token string) error {
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}
	existing, err := s.repo.GetMobileByToken(ctx, token)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.UserID = userID
		return s.repo.SaveMobile(ctx, existing)
	}
	return s.repo.SaveMobile(ctx, &model.Mobile{UserID: userID, Token: token})
}

func (s *MobileService) UnregisterToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}
	return s.repo.DeleteMobileByToken(ctx, token)
}
