package service

import (
	"context"

	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/repository"
	"github.com/stick95/fanpost/internal/transfer"
)

type AccountService interface {
	List(ctx context.Context, userID int64) ([]transfer.AccountInfo, error)
	Unlink(ctx context.Context, userID int64, dest models.DestinationRef) error
}

type accountService struct {
	sa repository.SocialAccountRepository
}

func NewAccountService(sa repository.SocialAccountRepository) AccountService {
	return &accountService{sa: sa}
}

func (s *accountService) List(ctx context.Context, userID int64) ([]transfer.AccountInfo, error) {
	accounts, err := s.sa.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	infos := make([]transfer.AccountInfo, 0, len(accounts))
	for _, a := range accounts {
		infos = append(infos, transfer.AccountInfo{
			Platform:       a.Platform,
			AccountID:      a.AccountID,
			AccountName:    a.AccountName,
			Username:       a.AccountUsername,
			ProfilePicture: a.ProfilePicture,
			Status:         a.AccountStatus,
		})
	}
	return infos, nil
}

func (s *accountService) Unlink(ctx context.Context, userID int64, dest models.DestinationRef) error {
	account, err := s.sa.GetByDestination(ctx, dest)
	if err != nil {
		return err
	}
	if account == nil || account.UserID != userID {
		return ErrNotFound
	}
	return s.sa.Remove(ctx, account.ID)
}
