package in_memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stabledesk/liquidity-router/internal/domain"
	"github.com/stabledesk/liquidity-router/internal/port"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedOffer(id, seller string, nonce uint64, created time.Time) *domain.Offer {
	return &domain.Offer{
		ID:        id,
		Seller:    seller,
		Chain:     "base",
		Token:     "USDC",
		Rate:      dec("0.01"),
		MinAmount: dec("10"),
		MaxAmount: dec("100"),
		Available: dec("100"),
		Fee:       dec("0.001"),
		LatencyMS: 5000,
		Status:    domain.OfferActive,
		Nonce:     nonce,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func insertOffer(t *testing.T, repo *MemoryRepo, o *domain.Offer) {
	t.Helper()
	ctx := context.Background()
	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertOffer(ctx, o))
	require.NoError(t, tx.Commit(ctx))
}

func TestCommitAppliesStagedWrites(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertOffer(ctx, seedOffer("o1", "s1", 1, time.Now())))

	// staged but uncommitted writes are visible inside the transaction only
	staged, err := tx.OfferForUpdate(ctx, "o1")
	require.NoError(t, err)
	require.NotNil(t, staged)
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.GetOffer(ctx, "o1")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestRollbackDiscardsStagedWrites(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	insertOffer(t, repo, seedOffer("o1", "s1", 1, time.Now()))

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	o, err := tx.OfferForUpdate(ctx, "o1")
	require.NoError(t, err)
	o.Available = dec("1")
	require.NoError(t, tx.UpdateOffer(ctx, o))
	require.NoError(t, tx.InsertReservation(ctx, &domain.Reservation{
		ID:       "r1",
		OfferID:  "o1",
		Quantity: dec("99"),
		Status:   domain.ReservationPending,
	}))
	require.NoError(t, tx.Rollback(ctx))

	got, err := repo.GetOffer(ctx, "o1")
	require.NoError(t, err)
	require.True(t, got.Available.Equal(dec("100")))
	res, err := repo.GetReservation(ctx, "r1")
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestForUpdateAbsentRowsReturnNil(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	o, err := tx.OfferForUpdate(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, o)
	r, err := tx.ReservationForUpdate(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, r)
}

func TestListOffersFiltersAndSorts(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	base := time.Now()

	a := seedOffer("a", "s1", 1, base)
	a.Rate = dec("0.02")
	a.Fee = dec("0.003")
	b := seedOffer("b", "s2", 1, base.Add(time.Second))
	b.Rate = dec("0.01")
	c := seedOffer("c", "s3", 1, base.Add(2*time.Second))
	c.Chain = "polygon"
	cancelled := seedOffer("d", "s4", 1, base)
	cancelled.Status = domain.OfferCancelled
	past := base.Add(-time.Hour)
	expired := seedOffer("e", "s5", 1, base)
	expired.ExpiresAt = &past
	for _, o := range []*domain.Offer{a, b, c, cancelled, expired} {
		insertOffer(t, repo, o)
	}

	offers, err := repo.ListOffers(ctx, port.OfferFilter{Chain: "base"})
	require.NoError(t, err)
	require.Len(t, offers, 2)
	require.Equal(t, "b", offers[0].ID) // rate ascending by default
	require.Equal(t, "a", offers[1].ID)

	offers, err = repo.ListOffers(ctx, port.OfferFilter{Token: "usdc", MaxFee: dec("0.002")})
	require.NoError(t, err)
	require.Len(t, offers, 2) // b and c; token matching ignores case

	offers, err = repo.ListOffers(ctx, port.OfferFilter{SortBy: "latency", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, offers, 1)
}

func TestListOffersAmountBounds(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	small := seedOffer("small", "s1", 1, time.Now())
	small.Available = dec("15")
	small.MaxAmount = dec("20")
	large := seedOffer("large", "s2", 1, time.Now())
	large.MinAmount = dec("50")
	for _, o := range []*domain.Offer{small, large} {
		insertOffer(t, repo, o)
	}

	// MinAmount: only offers that can fill at least that much
	offers, err := repo.ListOffers(ctx, port.OfferFilter{MinAmount: dec("30")})
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.Equal(t, "large", offers[0].ID)

	// MaxAmount: only offers whose own minimum fits under it
	offers, err = repo.ListOffers(ctx, port.OfferFilter{MaxAmount: dec("30")})
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.Equal(t, "small", offers[0].ID)
}

func TestLatestOfferBySellerSeesStagedWrites(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	insertOffer(t, repo, seedOffer("o1", "0xSeller", 3, time.Now()))

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	latest, err := tx.LatestOfferBySellerForUpdate(ctx, "0xseller")
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.EqualValues(t, 3, latest.Nonce)

	// a staged replacement shadows the committed row
	replacement := seedOffer("o1", "0xSeller", 5, time.Now())
	require.NoError(t, tx.UpdateOffer(ctx, replacement))
	latest, err = tx.LatestOfferBySellerForUpdate(ctx, "0xSeller")
	require.NoError(t, err)
	require.EqualValues(t, 5, latest.Nonce)

	latest, err = tx.LatestOfferBySellerForUpdate(ctx, "0xNobody")
	require.NoError(t, err)
	require.Nil(t, latest)
}
