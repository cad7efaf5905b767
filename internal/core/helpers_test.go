package core

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stabledesk/liquidity-router/internal/adapter/in_memory"
	"github.com/stabledesk/liquidity-router/internal/domain"
	"github.com/stabledesk/liquidity-router/internal/signing"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newSellerKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return key, ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
}

func baseOffer(seller string) *domain.Offer {
	return &domain.Offer{
		Seller:    seller,
		Chain:     "base",
		Token:     "USDC",
		Rate:      dec("0.01"),
		MinAmount: dec("10"),
		MaxAmount: dec("100"),
		Available: dec("100"),
		Fee:       dec("0.001"),
		LatencyMS: 5000,
		Nonce:     1,
	}
}

func signOffer(t *testing.T, key *ecdsa.PrivateKey, o *domain.Offer) string {
	t.Helper()
	sig, err := signing.Sign(offerMessage(o, o.Available, o.Nonce), key)
	require.NoError(t, err)
	return hex.EncodeToString(sig)
}

func signAvailable(t *testing.T, key *ecdsa.PrivateKey, o *domain.Offer, newAvailable decimal.Decimal, nonce uint64) string {
	t.Helper()
	sig, err := signing.Sign(offerMessage(o, newAvailable, nonce), key)
	require.NoError(t, err)
	return hex.EncodeToString(sig)
}

func signCancel(t *testing.T, key *ecdsa.PrivateKey, offerID string, nonce uint64) string {
	t.Helper()
	sig, err := signing.Sign(signing.CancelMessage{OfferID: offerID, Nonce: nonce}, key)
	require.NoError(t, err)
	return hex.EncodeToString(sig)
}

// submitOffer signs and submits an offer built from baseOffer plus mutations.
func submitOffer(t *testing.T, reg *Registry, key *ecdsa.PrivateKey, mutate func(*domain.Offer)) *domain.Offer {
	t.Helper()
	o := baseOffer(ethcrypto.PubkeyToAddress(key.PublicKey).Hex())
	if mutate != nil {
		mutate(o)
	}
	created, err := reg.Submit(context.Background(), o, signOffer(t, key, o))
	require.NoError(t, err)
	return created
}

func newTestStack(t *testing.T) (*in_memory.MemoryRepo, *Registry, *Ledger) {
	t.Helper()
	repo := in_memory.NewMemoryRepo()
	return repo, NewRegistry(repo), NewLedger(repo)
}
