package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Header names carrying a signed request.
const (
	HeaderCaller    = "X-Auction-Caller"
	HeaderTimestamp = "X-Auction-Timestamp"
	HeaderNonce     = "X-Auction-Nonce"
	HeaderSignature = "X-Auction-Signature"
)

const (
	domainName    = "AuctionHouse"
	domainVersion = "1"
)

var (
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)
	requestTypeHash = ethcrypto.Keccak256(
		[]byte("Request(address caller,string method,string path,bytes32 bodyHash,uint256 timestamp,string nonce)"),
	)
)

// ErrBadSignature is returned when a signature does not recover to the
// claimed caller.
var ErrBadSignature = errors.New("crypto: signature does not match caller")

// Request is the EIP-712 struct a caller signs to authenticate one API call.
// The body is bound by its keccak256 hash.
type Request struct {
	Caller    common.Address
	Method    string
	Path      string
	Body      []byte
	Timestamp int64
	Nonce     string
}

// Digest returns the EIP-712 digest of r under the AuctionHouse domain for
// chainID.
func (r Request) Digest(chainID int64) []byte {
	structHash := ethcrypto.Keccak256(
		requestTypeHash,
		common.LeftPadBytes(r.Caller.Bytes(), 32),
		ethcrypto.Keccak256([]byte(strings.ToUpper(r.Method))),
		ethcrypto.Keccak256([]byte(r.Path)),
		ethcrypto.Keccak256(r.Body),
		common.LeftPadBytes(big.NewInt(r.Timestamp).Bytes(), 32),
		ethcrypto.Keccak256([]byte(r.Nonce)),
	)
	return eip712Hash(domainSeparator(chainID), structHash)
}

// Signer signs API requests with a secp256k1 key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    int64
}

// NewSigner creates a Signer from a hex-encoded private key.
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID:    chainID,
	}, nil
}

// Address returns the address derived from the signer's key.
func (s *Signer) Address() common.Address {
	return s.address
}

// Sign returns the 65-byte hex signature (v in {27,28}) over r.
func (s *Signer) Sign(r Request) (string, error) {
	sig, err := ethcrypto.Sign(r.Digest(s.chainID), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// Headers signs a request for method, path and body at now with a fresh
// nonce and returns the headers to attach.
func (s *Signer) Headers(method, path string, body []byte, now time.Time) (map[string]string, error) {
	r := Request{
		Caller:    s.address,
		Method:    method,
		Path:      path,
		Body:      body,
		Timestamp: now.Unix(),
		Nonce:     uuid.NewString(),
	}
	sig, err := s.Sign(r)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		HeaderCaller:    r.Caller.Hex(),
		HeaderTimestamp: strconv.FormatInt(r.Timestamp, 10),
		HeaderNonce:     r.Nonce,
		HeaderSignature: sig,
	}, nil
}

// Verify checks that sigHex over r was produced by r.Caller.
func Verify(r Request, sigHex string, chainID int64) error {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil || len(sig) != 65 {
		return fmt.Errorf("crypto/signer: malformed signature: %w", ErrBadSignature)
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(r.Digest(chainID), sig)
	if err != nil {
		return fmt.Errorf("crypto/signer: recover: %w", ErrBadSignature)
	}
	if ethcrypto.PubkeyToAddress(*pub) != r.Caller {
		return ErrBadSignature
	}
	return nil
}

// domainSeparator returns keccak256(abi.encode(typeHash, nameHash, versionHash, chainId)).
func domainSeparator(chainID int64) []byte {
	return ethcrypto.Keccak256(
		eip712DomainTypeHash,
		ethcrypto.Keccak256([]byte(domainName)),
		ethcrypto.Keccak256([]byte(domainVersion)),
		common.LeftPadBytes(big.NewInt(chainID).Bytes(), 32),
	)
}

// eip712Hash computes keccak256("\x19\x01" || domainSeparator || structHash).
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256([]byte{0x19, 0x01}, domainSep, structHash)
}
