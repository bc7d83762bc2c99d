package listings

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/dbtest"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

func TestRepositoryCreateAndFind(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	vendorID := uuid.New()

	listing := &models.Listing{VendorID: vendorID, Title: "Honey jars", Currency: enums.CurrencyUSD}
	require.NoError(t, repo.Create(ctx, listing))
	require.NotEqual(t, uuid.Nil, listing.ID)

	found, err := repo.FindByID(ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, "Honey jars", found.Title)
	require.Equal(t, vendorID, found.VendorID)

	rows, err := repo.ListByVendor(ctx, vendorID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = repo.FindByID(ctx, uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
