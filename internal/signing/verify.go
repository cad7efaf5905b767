package signing

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Hash returns the keccak256 digest of the message's canonical form; this is
// what gets signed and verified.
func Hash(m Message) []byte {
	return ethcrypto.Keccak256([]byte(m.Canonical()))
}

// Sign produces a 65-byte recoverable secp256k1 signature over Hash(m).
func Sign(m Message, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := ethcrypto.Sign(Hash(m), key)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	return sig, nil
}

// RecoverSigner returns the hex address recovered from the signature.
func RecoverSigner(m Message, sig []byte) (string, error) {
	if len(sig) != 65 {
		return "", fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(Hash(m), normalized)
	if err != nil {
		return "", fmt.Errorf("recover signer: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub).Hex(), nil
}

// Verify recovers the signer address and compares it case-insensitively to
// the claimed identity. Malformed or mismatching signatures return false,
// never an error.
func Verify(m Message, sig []byte, claimed string) bool {
	recovered, err := RecoverSigner(m, sig)
	if err != nil {
		return false
	}
	return strings.EqualFold(recovered, strings.TrimSpace(claimed))
}

// ParseSignature decodes a hex signature with or without a 0x prefix.
func ParseSignature(s string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("empty signature")
	}
	sig, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	return sig, nil
}
