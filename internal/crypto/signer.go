package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Signer produces the wallet signatures required for trade endpoints. The
// exchange verifies a personal-sign signature over the keccak256 hash of the
// serialized request parameters.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}

	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the Ethereum address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignOrder hashes the order parameters and signs the digest. Field order
// and encoding must match the exchange's server-side verification exactly:
// nonce as its 16 raw bytes, addresses as 20 bytes, strings as their UTF-8
// bytes, enums as a single byte.
func (s *Signer) SignOrder(nonce uuid.UUID, wallet common.Address, market string, side, orderType byte, quantity, price string) (string, error) {
	hash := ethcrypto.Keccak256(
		concatBytes(
			nonce[:],
			wallet.Bytes(),
			[]byte(market),
			[]byte{side},
			[]byte{orderType},
			[]byte(quantity),
			[]byte(price),
		),
	)
	return s.signHash(hash)
}

// SignCancel signs a cancellation request covering the nonce, wallet, and
// the order ID being cancelled.
func (s *Signer) SignCancel(nonce uuid.UUID, wallet common.Address, orderID string) (string, error) {
	hash := ethcrypto.Keccak256(
		concatBytes(
			nonce[:],
			wallet.Bytes(),
			[]byte(orderID),
		),
	)
	return s.signHash(hash)
}

// signHash applies the personal-sign prefix to a 32-byte parameter hash,
// signs with secp256k1, and returns the hex-encoded 65-byte signature.
func (s *Signer) signHash(hash []byte) (string, error) {
	prefixed := ethcrypto.Keccak256(
		concatBytes(
			[]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(hash))),
			hash,
		),
	)

	sig, err := ethcrypto.Sign(prefixed, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}

	// go-ethereum returns v in {0,1}; the exchange expects v in {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + hex.EncodeToString(sig), nil
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
