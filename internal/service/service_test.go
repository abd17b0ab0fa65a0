package service

import (
	"context"
	"io"
	"testing"
	"time"

	"farmlink/config"
	"farmlink/internal/database/dbtest"
	"farmlink/internal/domain"
	"farmlink/internal/models"
	"farmlink/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db  *gorm.DB
	svc *ReferralService
	ctx context.Context
}

func newFixture(t *testing.T, policy domain.RewardPolicy) *fixture {
	t.Helper()
	db := dbtest.New(t)
	logg := logrus.New()
	logg.SetOutput(io.Discard)
	cfg := config.ReferralConfig{
		Policy:      policy,
		CodeRetries: 10,
		TxAttempts:  3,
		OpTimeout:   10 * time.Second,
	}
	svc := NewReferralService(db,
		repository.NewReferralRepository(db),
		repository.NewUserRepository(db),
		repository.NewOrderRepository(db),
		cfg, logg)
	return &fixture{db: db, svc: svc, ctx: context.Background()}
}

func (f *fixture) user(t *testing.T, role domain.Role, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: uuid.NewString() + "@example.com", Role: role}
	require.NoError(t, repository.NewUserRepository(f.db).Create(u))
	return u
}

func (f *fixture) codes(t *testing.T, u *models.User) *ReferralCodes {
	t.Helper()
	c, err := f.svc.GenerateReferralCode(f.ctx, u.ID, u.Role)
	require.NoError(t, err)
	return c
}

func (f *fixture) profile(t *testing.T, userID uuid.UUID) *models.ReferralProfile {
	t.Helper()
	p, err := repository.NewReferralRepository(f.db).GetProfileByUserID(userID)
	require.NoError(t, err)
	return p
}

func (f *fixture) history(t *testing.T, referredID uuid.UUID) *models.ReferralHistory {
	t.Helper()
	h, err := repository.NewReferralRepository(f.db).GetHistoryByReferredID(referredID)
	require.NoError(t, err)
	return h
}

func (f *fixture) order(t *testing.T, u *models.User, feeCents int64) *models.Order {
	t.Helper()
	o := &models.Order{UserID: u.ID, SubtotalCents: 2500, DeliveryFeeCents: feeCents}
	require.NoError(t, repository.NewOrderRepository(f.db).Create(o))
	return o
}

// refer attributes a new consumer or farmer to referrer's matching code.
func (f *fixture) refer(t *testing.T, referrer, referred *models.User) *AttributionResult {
	t.Helper()
	c := f.codes(t, referrer)
	code := c.CustomerReferralCode
	if referred.Role == domain.RoleFarmer {
		code = c.FarmerReferralCode
	}
	res, err := f.svc.ApplyReferralCode(f.ctx, code, referred.ID, referred.Role)
	require.NoError(t, err)
	return res
}
