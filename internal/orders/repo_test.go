package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/dbtest"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

func appendOrder(t *testing.T, repo Repository, batchID uuid.UUID, qty int) *models.Order {
	t.Helper()
	ctx := context.Background()
	seq, err := repo.NextSequence(ctx, batchID)
	require.NoError(t, err)
	unit := decimal.RequireFromString("3.25")
	order := &models.Order{
		BatchID:      batchID,
		CustomerID:   uuid.New(),
		Quantity:     qty,
		UnitPrice:    unit,
		TotalPrice:   unit.Mul(decimal.NewFromInt(int64(qty))),
		Currency:     enums.CurrencyUSD,
		EscrowStatus: enums.EscrowStateHeld,
		Sequence:     seq,
	}
	require.NoError(t, repo.Create(ctx, order))
	return order
}

func TestLedgerAppendsInSequence(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	batchID := uuid.New()

	first := appendOrder(t, repo, batchID, 2)
	second := appendOrder(t, repo, batchID, 1)
	other := appendOrder(t, repo, uuid.New(), 7)

	assert.Equal(t, 1, first.Sequence)
	assert.Equal(t, 2, second.Sequence)
	assert.Equal(t, 1, other.Sequence)

	rows, err := repo.ListByBatch(context.Background(), batchID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, second.ID, rows[1].ID)
	assert.Equal(t, enums.GroupStatusOpen, rows[0].GroupStatus)
	assert.Equal(t, enums.FulfillmentStatusPending, rows[0].FulfillmentStatus)
	assert.True(t, rows[0].TotalPrice.Equal(decimal.RequireFromString("6.50")))

	total, err := repo.SumQuantityByBatch(context.Background(), batchID)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	empty, err := repo.SumQuantityByBatch(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, empty)
}

func TestListByBatchAfterPages(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	batchID := uuid.New()

	var placed []*models.Order
	for i := 0; i < 5; i++ {
		placed = append(placed, appendOrder(t, repo, batchID, 1))
	}

	page, err := repo.ListByBatchAfter(context.Background(), batchID, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, placed[0].ID, page[0].ID)

	page, err = repo.ListByBatchAfter(context.Background(), batchID, page[1].Sequence, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, placed[2].ID, page[0].ID)
	assert.Equal(t, placed[4].ID, page[2].ID)
}

func TestDuplicateSequenceRejected(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	batchID := uuid.New()
	order := appendOrder(t, repo, batchID, 1)

	dup := *order
	dup.ID = uuid.Nil
	require.Error(t, repo.Create(context.Background(), &dup))
}

func TestStatusUpdates(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	batchID := uuid.New()
	a := appendOrder(t, repo, batchID, 1)
	b := appendOrder(t, repo, batchID, 1)

	n, err := repo.UpdateGroupStatusForBatch(ctx, batchID, enums.GroupStatusSucceeded)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, repo.UpdateFulfillmentStatus(ctx, a.ID, enums.FulfillmentStatusShipped))
	n, err = repo.UpdateFulfillmentForBatch(ctx, batchID, []enums.FulfillmentStatus{enums.FulfillmentStatusPending}, enums.FulfillmentStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	refunded := enums.FulfillmentStatusRefunded
	require.NoError(t, repo.UpdateEscrowStatus(ctx, b.ID, enums.EscrowStateRefunded, &refunded))

	reloaded, err := repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.GroupStatusSucceeded, reloaded.GroupStatus)
	assert.Equal(t, enums.EscrowStateRefunded, reloaded.EscrowStatus)
	assert.Equal(t, enums.FulfillmentStatusRefunded, reloaded.FulfillmentStatus)

	require.ErrorIs(t, repo.UpdateFulfillmentStatus(ctx, uuid.New(), enums.FulfillmentStatusShipped), gorm.ErrRecordNotFound)
	require.ErrorIs(t, repo.UpdateEscrowStatus(ctx, uuid.New(), enums.EscrowStateReleased, nil), gorm.ErrRecordNotFound)
}
