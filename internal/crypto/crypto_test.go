package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known test vector key (hardhat account #0), never used on mainnet.
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestSignerAddress(t *testing.T) {
	signer, err := NewSigner("0x" + testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", signer.Address().Hex())

	_, err = NewSigner("not-hex")
	assert.Error(t, err)
}

func TestSignOrderDeterministic(t *testing.T) {
	signer, err := NewSigner(testKeyHex)
	require.NoError(t, err)

	nonce := uuid.MustParse("01890a5d-ac96-774b-b14c-5e1b0a6a0000")
	sig1, err := signer.SignOrder(nonce, signer.Address(), "ETH-USD", 0, 1, "1.50000000", "2000.00000000")
	require.NoError(t, err)
	sig2, err := signer.SignOrder(nonce, signer.Address(), "ETH-USD", 0, 1, "1.50000000", "2000.00000000")
	require.NoError(t, err)

	assert.Equal(t, sig1, sig2)
	assert.True(t, strings.HasPrefix(sig1, "0x"))
	assert.Len(t, sig1, 2+65*2)

	// Any parameter change produces a different signature.
	sig3, err := signer.SignOrder(nonce, signer.Address(), "ETH-USD", 1, 1, "1.50000000", "2000.00000000")
	require.NoError(t, err)
	assert.NotEqual(t, sig1, sig3)
}

func TestHMACAuthHeaders(t *testing.T) {
	auth := &HMACAuth{Key: "api-key", Secret: "api-secret"}

	headers := auth.AuthHeaders("market=ETH-USD&limit=50")
	assert.Equal(t, "api-key", headers["IDEX-API-Key"])
	assert.Len(t, headers["IDEX-HMAC-Signature"], 64) // hex SHA-256

	again := auth.AuthHeaders("market=ETH-USD&limit=50")
	assert.Equal(t, headers["IDEX-HMAC-Signature"], again["IDEX-HMAC-Signature"])

	different := auth.AuthHeaders("market=BTC-USD&limit=50")
	assert.NotEqual(t, headers["IDEX-HMAC-Signature"], different["IDEX-HMAC-Signature"])

	assert.NotContains(t, auth.String(), "api-secret")
}

func TestKeyEncryptionRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "correct horse battery staple")
	require.NoError(t, err)

	decrypted, err := DecryptKey(blob, "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, decrypted)

	_, err = DecryptKey(blob, "wrong password")
	assert.Error(t, err)

	_, err = EncryptKey(testKeyHex, "")
	assert.Error(t, err)
	_, err = EncryptKey("zz", "pw")
	assert.Error(t, err)
}

func TestLoadKey(t *testing.T) {
	key, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, key)

	_, err = LoadKey(KeyConfig{})
	assert.Error(t, err)

	blob, err := EncryptKey(testKeyHex, "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	key, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, key)
}
