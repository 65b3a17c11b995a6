package crypto

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

// Well-known development key (hardhat account #0).
const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var devAddr = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func TestSignerAddress(t *testing.T) {
	t.Parallel()
	s, err := NewSigner("0x"+devKey, 1)
	assert.NoError(t, err)
	check.Equal(t, devAddr, s.Address())

	_, err = NewSigner("not-hex", 1)
	check.Error(t, err)
}

func TestSignAndVerify(t *testing.T) {
	t.Parallel()
	s, err := NewSigner(devKey, 1)
	assert.NoError(t, err)

	r := Request{
		Caller:    devAddr,
		Method:    "post",
		Path:      "/api/auctions",
		Body:      []byte(`{"duration":86400}`),
		Timestamp: 1_700_000_000,
		Nonce:     "n-1",
	}
	sig, err := s.Sign(r)
	assert.NoError(t, err)
	check.NoError(t, Verify(r, sig, 1))

	// Method case does not matter.
	r2 := r
	r2.Method = "POST"
	check.NoError(t, Verify(r2, sig, 1))

	tampered := r
	tampered.Body = []byte(`{"duration":1}`)
	check.True(t, errors.Is(Verify(tampered, sig, 1), ErrBadSignature))

	otherChain := Verify(r, sig, 5)
	check.True(t, errors.Is(otherChain, ErrBadSignature))

	impostor := r
	impostor.Caller = common.HexToAddress("0xb0b")
	check.True(t, errors.Is(Verify(impostor, sig, 1), ErrBadSignature))

	check.True(t, errors.Is(Verify(r, "0x1234", 1), ErrBadSignature))
}

func TestHeaders(t *testing.T) {
	t.Parallel()
	s, err := NewSigner(devKey, 1)
	assert.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	h, err := s.Headers("POST", "/api/admin/pause", nil, now)
	assert.NoError(t, err)
	check.Equal(t, devAddr.Hex(), h[HeaderCaller])
	check.Equal(t, "1700000000", h[HeaderTimestamp])
	check.NotEqual(t, "", h[HeaderNonce])

	ts, _ := strconv.ParseInt(h[HeaderTimestamp], 10, 64)
	r := Request{
		Caller:    common.HexToAddress(h[HeaderCaller]),
		Method:    "POST",
		Path:      "/api/admin/pause",
		Timestamp: ts,
		Nonce:     h[HeaderNonce],
	}
	check.NoError(t, Verify(r, h[HeaderSignature], 1))
}

func TestEncryptDecryptKey(t *testing.T) {
	t.Parallel()
	blob, err := EncryptKey("0x"+devKey, "hunter2")
	assert.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	assert.NoError(t, err)
	check.Equal(t, devKey, got)

	_, err = DecryptKey(blob, "wrong")
	check.Error(t, err)

	_, err = EncryptKey(devKey, "")
	check.Error(t, err)
	_, err = EncryptKey("abcd", "pw")
	check.Error(t, err)
}

func TestLoadSigner(t *testing.T) {
	t.Parallel()
	blob, err := EncryptKey(devKey, "pw")
	assert.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.json")
	assert.NoError(t, os.WriteFile(path, blob, 0o600))

	s, err := LoadSigner(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"}, 1)
	assert.NoError(t, err)
	check.Equal(t, devAddr, s.Address())

	s, err = LoadSigner(KeyConfig{RawPrivateKey: "0x" + devKey, EncryptedKeyPath: "/nonexistent"}, 1)
	assert.NoError(t, err)
	check.Equal(t, devAddr, s.Address())

	_, err = LoadSigner(KeyConfig{}, 1)
	check.Error(t, err)
}
