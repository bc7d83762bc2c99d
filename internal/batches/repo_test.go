package batches

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/dbtest"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

func seedBatch(t *testing.T, repo Repository, status enums.BatchStatus, cutoff time.Time) *models.RegionalBatch {
	t.Helper()
	batch := &models.RegionalBatch{
		ListingID:       uuid.New(),
		Region:          "east",
		Price:           decimal.RequireFromString("9.99"),
		MinimumQuantity: 3,
		CutoffDate:      cutoff.UTC(),
		DeliveryMethod:  enums.DeliveryMethodDirectDelivery,
		Status:          status,
	}
	require.NoError(t, repo.Create(context.Background(), batch))
	return batch
}

func TestRepositoryCreateFindSave(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	batch := seedBatch(t, repo, enums.BatchStatusDraft, time.Now().Add(time.Hour))
	require.NotEqual(t, uuid.Nil, batch.ID)

	found, err := repo.FindByID(ctx, batch.ID)
	require.NoError(t, err)
	require.True(t, found.Price.Equal(decimal.RequireFromString("9.99")))
	require.Equal(t, enums.BatchStatusDraft, found.Status)

	found.CurrentQuantity = 2
	found.Status = enums.BatchStatusActive
	require.NoError(t, repo.Save(ctx, found))

	reloaded, err := repo.FindByID(ctx, batch.ID)
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.CurrentQuantity)
	require.Equal(t, enums.BatchStatusActive, reloaded.Status)

	_, err = repo.FindByID(ctx, uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryFindForUpdateInsideTx(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	batch := seedBatch(t, repo, enums.BatchStatusActive, time.Now().Add(time.Hour))

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		locked, err := repo.WithTx(tx).FindForUpdate(context.Background(), batch.ID)
		if err != nil {
			return err
		}
		locked.CurrentQuantity++
		return repo.WithTx(tx).Save(context.Background(), locked)
	})
	require.NoError(t, err)

	reloaded, err := repo.FindByID(context.Background(), batch.ID)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.CurrentQuantity)
}

func TestRepositoryListDueActive(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	now := time.Now().UTC()

	due := seedBatch(t, repo, enums.BatchStatusActive, now.Add(-time.Minute))
	seedBatch(t, repo, enums.BatchStatusActive, now.Add(time.Hour))
	seedBatch(t, repo, enums.BatchStatusDraft, now.Add(-time.Hour))
	seedBatch(t, repo, enums.BatchStatusFailed, now.Add(-time.Hour))

	rows, err := repo.ListDueActive(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, due.ID, rows[0].ID)
}

func TestRepositoryListResolvedWithHeldEscrow(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	now := time.Now().UTC()

	cancelled := seedBatch(t, repo, enums.BatchStatusCancelled, now.Add(time.Hour))
	settled := seedBatch(t, repo, enums.BatchStatusFailed, now.Add(-time.Hour))
	active := seedBatch(t, repo, enums.BatchStatusActive, now.Add(time.Hour))

	records := []models.EscrowRecord{
		{OrderID: uuid.New(), BatchID: cancelled.ID, PaymentReferenceID: "p1", IdempotencyKey: "k1", HeldAmount: decimal.NewFromInt(5), State: enums.EscrowStateHeld},
		{OrderID: uuid.New(), BatchID: settled.ID, PaymentReferenceID: "p2", IdempotencyKey: "k2", HeldAmount: decimal.NewFromInt(5), State: enums.EscrowStateRefunded},
		{OrderID: uuid.New(), BatchID: active.ID, PaymentReferenceID: "p3", IdempotencyKey: "k3", HeldAmount: decimal.NewFromInt(5), State: enums.EscrowStateHeld},
	}
	require.NoError(t, client.DB().Create(&records).Error)

	rows, err := repo.ListResolvedWithHeldEscrow(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, cancelled.ID, rows[0].ID)
}

func TestRepositoryListByListing(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	first := seedBatch(t, repo, enums.BatchStatusDraft, time.Now().Add(time.Hour))
	second := &models.RegionalBatch{
		ListingID:       first.ListingID,
		Region:          "north",
		Price:           decimal.NewFromInt(4),
		MinimumQuantity: 1,
		CutoffDate:      time.Now().Add(time.Hour).UTC(),
		DeliveryMethod:  enums.DeliveryMethodPickupPoint,
	}
	require.NoError(t, repo.Create(context.Background(), second))

	rows, err := repo.ListByListing(context.Background(), first.ListingID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
