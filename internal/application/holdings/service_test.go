package holdings

import (
	"context"
	"testing"

	"unicarbon-backend/internal/domain"
	"unicarbon-backend/internal/infrastructure/database"
	"unicarbon-backend/internal/infrastructure/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHoldings(t *testing.T) (*Service, *domain.Property, *domain.Property) {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	store := ledger.New(db)
	ctx := context.Background()

	mangrove := &domain.Property{Name: "Mangrove", Price: decimal.NewFromInt(10), AvailableShares: 5, TotalShares: 10}
	wind := &domain.Property{Name: "Wind", Price: decimal.RequireFromString("2.5"), AvailableShares: 5, TotalShares: 10}
	require.NoError(t, store.CreateProperty(ctx, mangrove))
	require.NoError(t, store.CreateProperty(ctx, wind))
	require.NoError(t, store.CreditOwner(ctx, "user-1", mangrove.ID, decimal.NewFromInt(3)))
	require.NoError(t, store.CreditOwner(ctx, "user-1", wind.ID, decimal.NewFromInt(8)))
	return &Service{Store: store}, mangrove, wind
}

func TestViewHoldings_OrderedWithValue(t *testing.T) {
	svc, mangrove, wind := setupHoldings(t)

	hs, err := svc.ViewHoldings(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, wind.ID, hs[0].PropertyID)
	assert.True(t, hs[0].Value.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, mangrove.ID, hs[1].PropertyID)
	assert.Equal(t, "Mangrove", hs[1].PropertyName)
	assert.True(t, hs[1].Value.Equal(decimal.NewFromInt(30)))
}

func TestViewHoldings_EmptyAndInvalid(t *testing.T) {
	svc, _, _ := setupHoldings(t)

	hs, err := svc.ViewHoldings(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, hs)

	_, err = svc.ViewHoldings(context.Background(), "  ")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestViewHolding(t *testing.T) {
	svc, mangrove, _ := setupHoldings(t)
	ctx := context.Background()

	h, err := svc.ViewHolding(ctx, "user-1", mangrove.ID.String())
	require.NoError(t, err)
	assert.True(t, h.Credits.Equal(decimal.NewFromInt(3)))

	_, err = svc.ViewHolding(ctx, "user-2", mangrove.ID.String())
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	_, err = svc.ViewHolding(ctx, "user-1", "not-a-uuid")
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = svc.ViewHolding(ctx, "user-1", uuid.NewString())
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}
