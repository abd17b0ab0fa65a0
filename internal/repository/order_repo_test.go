package repository

import (
	"testing"

	"farmlink/internal/database"
	"farmlink/internal/database/dbtest"
	"farmlink/internal/domain"
	"farmlink/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaiveDeliveryFeeOnce(t *testing.T) {
	db := dbtest.New(t)
	repo := NewOrderRepository(db)
	u := newUser(t, db, domain.RoleConsumer)
	o := &models.Order{UserID: u.ID, SubtotalCents: 4200, DeliveryFeeCents: 350}
	require.NoError(t, repo.Create(o))

	require.NoError(t, repo.WaiveDeliveryFee(o))
	assert.Equal(t, int64(0), o.DeliveryFeeCents)
	assert.Equal(t, int64(350), o.WaivedDeliveryFeeCents)

	stale := &models.Order{ID: o.ID, DeliveryFeeCents: 350}
	assert.ErrorIs(t, repo.WaiveDeliveryFee(stale), database.ErrConflict)

	got, err := repo.GetByID(o.ID)
	require.NoError(t, err)
	assert.True(t, got.FreeDeliveryApplied)
	assert.Equal(t, int64(0), got.DeliveryFeeCents)
	assert.Equal(t, int64(350), got.WaivedDeliveryFeeCents)

	_, err = repo.GetByID(uuid.New())
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
