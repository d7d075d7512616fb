package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pockettrade.com/internal/domain"
)

func TestRegistryLifecycle(t *testing.T) {
	db := newTestDB(t)
	svc := NewRegistryService(db, nil, nil)
	ctx := context.Background()

	ok, err := svc.IsOperator(ctx, "op")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.AddMint(ctx, "admin", "SOL", "")
	assert.ErrorIs(t, err, domain.ErrNotInitialized)

	reg, err := svc.Initialize(ctx, "admin", []string{"op", "op", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"op"}, []string(reg.Operators))

	_, err = svc.Initialize(ctx, "someone", nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyInitialized)

	ok, err = svc.IsOperator(ctx, "op")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.UpdateOperators(ctx, "op", []string{"op2"})
	assert.ErrorIs(t, err, domain.ErrNotAdministrator)

	_, err = svc.UpdateOperators(ctx, "admin", []string{"op2"})
	require.NoError(t, err)
	ok, err = svc.IsOperator(ctx, "op")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistryMints(t *testing.T) {
	db := newTestDB(t)
	svc := NewRegistryService(db, nil, nil)
	ctx := context.Background()

	_, err := svc.Initialize(ctx, "admin", nil)
	require.NoError(t, err)

	_, err = svc.AddMint(ctx, "admin", "SOL", "custody:sol")
	require.NoError(t, err)
	_, err = svc.AddMint(ctx, "admin", "SOL", "")
	assert.ErrorIs(t, err, domain.ErrMintExisted)

	ok, err := svc.IsMintWhitelisted(ctx, "SOL")
	require.NoError(t, err)
	assert.True(t, ok)

	info, err := svc.GetMintInfo(ctx, "SOL")
	require.NoError(t, err)
	assert.Equal(t, "custody:sol", info.CustodyAccount)

	_, err = svc.SetMintEnabled(ctx, "admin", "SOL", false)
	require.NoError(t, err)
	ok, err = svc.IsMintWhitelisted(ctx, "SOL")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.SetMintEnabled(ctx, "admin", "USDC", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetMintInfo(ctx, "USDC")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
