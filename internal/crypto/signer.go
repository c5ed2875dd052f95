package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

// Signer produces and verifies Ed25519 signatures over event-chain
// hashes. The private key lives hex-encoded on disk (path is the
// gateway's --key-path flag, default .contextguard_key); a Signer is
// safe for concurrent use since signing/verifying never mutates state
// beyond RotateKey.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewSigner loads the Ed25519 key at keyPath, generating and persisting
// a fresh keypair (mode 0600) if none exists yet.
func NewSigner(keyPath string) (*Signer, error) {
	privateKey, err := loadPrivateKey(keyPath)
	if err != nil {
		pub, priv, genErr := ed25519.GenerateKey(rand.Reader)
		if genErr != nil {
			return nil, fmt.Errorf("generating signing key: %w", genErr)
		}
		if saveErr := savePrivateKey(keyPath, priv); saveErr != nil {
			return nil, fmt.Errorf("persisting signing key: %w", saveErr)
		}
		return &Signer{privateKey: priv, publicKey: pub}, nil
	}

	return &Signer{
		privateKey: privateKey,
		publicKey:  privateKey.Public().(ed25519.PublicKey),
	}, nil
}

// SignHash signs an event-chain hash and returns the hex-encoded
// signature. The hash is signed as-is; Ed25519 does its own internal
// hashing, so no pre-hash step is needed here.
func (s *Signer) SignHash(hash string) (string, error) {
	sig := ed25519.Sign(s.privateKey, []byte(hash))
	return hex.EncodeToString(sig), nil
}

// VerifySignature reports whether signatureHex is a valid Ed25519
// signature over hash under this Signer's public key. A malformed
// signatureHex is treated as invalid rather than an error.
func (s *Signer) VerifySignature(hash, signatureHex string) bool {
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return ed25519.Verify(s.publicKey, []byte(hash), sig)
}

// GetPublicKey returns the hex-encoded Ed25519 public key, published
// alongside exported event logs so a third party can verify the chain
// without holding the private key.
func (s *Signer) GetPublicKey() string {
	return hex.EncodeToString(s.publicKey)
}

// RotateKey generates a fresh Ed25519 keypair, persists it over keyPath,
// and swaps the signer to it. Callers who need old events to stay
// verifiable are responsible for archiving the previous key file
// themselves before calling RotateKey. Returns the old and new public
// keys.
func (s *Signer) RotateKey(keyPath string) (oldPubKey, newPubKey string, err error) {
	oldPubKey = s.GetPublicKey()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generating replacement key: %w", err)
	}
	if err := savePrivateKey(keyPath, priv); err != nil {
		return "", "", fmt.Errorf("persisting rotated key: %w", err)
	}

	s.privateKey = priv
	s.publicKey = pub
	return oldPubKey, s.GetPublicKey(), nil
}

func loadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	keyBytes, err := hex.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("decoding signing key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing key has wrong size: expected %d bytes, got %d", ed25519.PrivateKeySize, len(keyBytes))
	}
	return ed25519.PrivateKey(keyBytes), nil
}

func savePrivateKey(path string, key ed25519.PrivateKey) error {
	return os.WriteFile(path, []byte(hex.EncodeToString(key)), 0600)
}
