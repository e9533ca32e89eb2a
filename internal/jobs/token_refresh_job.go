package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/repository"
	"github.com/stick95/fanpost/internal/token"
)

type TokenRefreshJob struct {
	sr       repository.SocialAccountRepository
	provider *token.StoreProvider
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, provider *token.StoreProvider) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr:       sr,
		provider: provider,
	}
}

// RefreshTokens renews tokens expiring within the next half hour so that
// deliveries running later do not stall on a refresh round trip.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.sr.ListExpiring(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.provider.RefreshAccount(ctx, acc); err != nil {
				slog.Info("unable to refresh token",
					"platform", acc.Platform,
					"account_id", acc.AccountID,
					"error", err.Error())
			}
		}(acc)
	}

	wg.Wait()
}
