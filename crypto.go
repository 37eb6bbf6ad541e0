package ethsign

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// GetHash returns the legacy keccak256 digest of data.
func GetHash(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

func loadKey(privatekey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privatekey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// SignBytes signs keccak256(data) and returns a 65 byte [R || S || V] signature.
func SignBytes(data []byte, privatekey string) ([]byte, error) {
	key, err := loadKey(privatekey)
	if err != nil {
		return nil, err
	}
	return crypto.Sign(GetHash(data), key)
}

func PrivKeyToAddr(privatekey string) (common.Address, error) {
	key, err := loadKey(privatekey)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// RecoverAddress returns the address whose key produced signature over data.
// Both V encodings (0/1 and 27/28) are accepted.
func RecoverAddress(data, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(GetHash(data), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func VerifySignature(data, signature []byte, address common.Address) error {
	recovered, err := RecoverAddress(data, signature)
	if err != nil {
		return err
	}
	if recovered != address {
		return fmt.Errorf("signature mismatch: expected %s, got %s", address.Hex(), recovered.Hex())
	}
	return nil
}

// Verifier checks secp256k1 signatures by public key recovery.
type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify reports whether signature over message was produced by claimed.
// Malformed signatures are reported as a failed verification, not an error.
func (v *Verifier) Verify(message, signature []byte, claimed common.Address) (bool, error) {
	return VerifySignature(message, signature, claimed) == nil, nil
}
