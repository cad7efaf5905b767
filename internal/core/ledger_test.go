package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stabledesk/liquidity-router/internal/domain"
)

func TestReserveDecrementsAvailable(t *testing.T) {
	_, reg, ledger := newTestStack(t)
	key, _ := newSellerKey(t)
	offer := submitOffer(t, reg, key, nil) // available 100

	res, remaining, err := ledger.Reserve(context.Background(), offer.ID, dec("30"))
	require.NoError(t, err)
	require.Equal(t, domain.ReservationPending, res.Status)
	require.True(t, res.Quantity.Equal(dec("30")))
	require.True(t, remaining.Equal(dec("70")))

	got, err := reg.GetByID(context.Background(), offer.ID)
	require.NoError(t, err)
	require.True(t, got.Available.Equal(dec("70")))
}

func TestReserveInsufficientLiquidity(t *testing.T) {
	_, reg, ledger := newTestStack(t)
	key, _ := newSellerKey(t)
	offer := submitOffer(t, reg, key, func(o *domain.Offer) { o.Available = dec("20") })

	_, _, err := ledger.Reserve(context.Background(), offer.ID, dec("30"))
	require.ErrorIs(t, err, domain.ErrConflict)

	// the failed reserve left available untouched
	got, err := reg.GetByID(context.Background(), offer.ID)
	require.NoError(t, err)
	require.True(t, got.Available.Equal(dec("20")))
}

func TestReserveValidatesQuantity(t *testing.T) {
	_, reg, ledger := newTestStack(t)
	key, _ := newSellerKey(t)
	offer := submitOffer(t, reg, key, nil)

	_, _, err := ledger.Reserve(context.Background(), offer.ID, dec("0"))
	require.ErrorIs(t, err, domain.ErrValidation)
	_, _, err = ledger.Reserve(context.Background(), offer.ID, dec("-5"))
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestReserveUnknownOffer(t *testing.T) {
	_, _, ledger := newTestStack(t)
	_, _, err := ledger.Reserve(context.Background(), "missing", dec("10"))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReserveInactiveOffer(t *testing.T) {
	_, reg, ledger := newTestStack(t)
	key, _ := newSellerKey(t)
	offer := submitOffer(t, reg, key, nil)
	_, err := reg.Cancel(context.Background(), offer.ID, 2, signCancel(t, key, offer.ID, 2), offer.Seller)
	require.NoError(t, err)

	_, _, err = ledger.Reserve(context.Background(), offer.ID, dec("10"))
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestCommitIsIdempotent(t *testing.T) {
	_, reg, ledger := newTestStack(t)
	key, _ := newSellerKey(t)
	offer := submitOffer(t, reg, key, nil)
	res, _, err := ledger.Reserve(context.Background(), offer.ID, dec("30"))
	require.NoError(t, err)

	first, err := ledger.Commit(context.Background(), res.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ReservationCommitted, first.Status)

	second, err := ledger.Commit(context.Background(), res.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ReservationCommitted, second.Status)

	// commit does not restore quantity
	got, err := reg.GetByID(context.Background(), offer.ID)
	require.NoError(t, err)
	require.True(t, got.Available.Equal(dec("70")))
}

func TestReleaseRestoresAvailable(t *testing.T) {
	_, reg, ledger := newTestStack(t)
	key, _ := newSellerKey(t)
	offer := submitOffer(t, reg, key, nil)
	res, _, err := ledger.Reserve(context.Background(), offer.ID, dec("30"))
	require.NoError(t, err)

	released, err := ledger.Release(context.Background(), res.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ReservationReleased, released.Status)

	got, err := reg.GetByID(context.Background(), offer.ID)
	require.NoError(t, err)
	require.True(t, got.Available.Equal(dec("100")))
}

func TestReservationLifecycleIsSingleUse(t *testing.T) {
	_, reg, ledger := newTestStack(t)
	key, _ := newSellerKey(t)
	offer := submitOffer(t, reg, key, nil)

	committedRes, _, err := ledger.Reserve(context.Background(), offer.ID, dec("10"))
	require.NoError(t, err)
	_, err = ledger.Commit(context.Background(), committedRes.ID)
	require.NoError(t, err)
	_, err = ledger.Release(context.Background(), committedRes.ID)
	require.ErrorIs(t, err, domain.ErrConflict)

	releasedRes, _, err := ledger.Reserve(context.Background(), offer.ID, dec("10"))
	require.NoError(t, err)
	_, err = ledger.Release(context.Background(), releasedRes.ID)
	require.NoError(t, err)
	_, err = ledger.Commit(context.Background(), releasedRes.ID)
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestGetReservationByID(t *testing.T) {
	_, reg, ledger := newTestStack(t)
	key, _ := newSellerKey(t)
	offer := submitOffer(t, reg, key, nil)
	res, _, err := ledger.Reserve(context.Background(), offer.ID, dec("10"))
	require.NoError(t, err)

	got, err := ledger.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	require.Equal(t, res.ID, got.ID)

	_, err = ledger.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	_, reg, ledger := newTestStack(t)
	key, _ := newSellerKey(t)
	offer := submitOffer(t, reg, key, nil) // available 100

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = ledger.Reserve(context.Background(), offer.ID, dec("60"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, domain.ErrConflict)
		}
	}
	require.Equal(t, 1, succeeded)

	got, err := reg.GetByID(context.Background(), offer.ID)
	require.NoError(t, err)
	require.True(t, got.Available.Equal(dec("40")))
}
