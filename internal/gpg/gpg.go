// Package gpg verifies detached OpenPGP signatures over the release feed,
// for deployments that mirror the feed and publish a signature next to it.
package gpg

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
)

const (
	maxKeyFileSize = 1024 * 1024 // 1MB is far beyond any armored public key
	keyFileMode    = 0600        // Required file permissions for key files on Unix systems
)

// KeyRing represents a collection of PGP keys for signature verification
type KeyRing interface {
	VerifyDetached(message []byte, signature []byte) error
	AddKey(key Key) error
	Fingerprints() []string
}

// Key represents a PGP public key
type Key interface {
	IsExpired() bool
	CanVerify() bool
	GetFingerprint() string
}

// RealKeyRing implements KeyRing using gopenpgp v2
type RealKeyRing struct {
	keyRing      *crypto.KeyRing
	fingerprints []string
}

// RealKey implements Key with actual PGP key data
type RealKey struct {
	pgpKey *crypto.Key
}

// NewRealKeyRing creates an empty keyring
func NewRealKeyRing() *RealKeyRing {
	return &RealKeyRing{}
}

// VerifyDetached checks an armored or binary detached signature over message
func (rk *RealKeyRing) VerifyDetached(message []byte, signature []byte) error {
	if rk.keyRing == nil {
		return fmt.Errorf("no keys in keyring")
	}

	plainMessage := crypto.NewPlainMessage(message)

	pgpSignature, err := crypto.NewPGPSignatureFromArmored(string(signature))
	if err != nil {
		// Try binary format if armored fails
		pgpSignature = crypto.NewPGPSignature(signature)
	}

	if err := rk.keyRing.VerifyDetached(plainMessage, pgpSignature, crypto.GetUnixTime()); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}

	return nil
}

// AddKey adds a RealKey to the keyring
func (rk *RealKeyRing) AddKey(key Key) error {
	if key == nil {
		return fmt.Errorf("key cannot be nil")
	}

	realKey, ok := key.(*RealKey)
	if !ok {
		return fmt.Errorf("unsupported key type")
	}

	if rk.keyRing == nil {
		var err error
		rk.keyRing, err = crypto.NewKeyRing(realKey.pgpKey)
		if err != nil {
			return fmt.Errorf("failed to create keyring: %w", err)
		}
	} else if err := rk.keyRing.AddKey(realKey.pgpKey); err != nil {
		return fmt.Errorf("failed to add key to keyring: %w", err)
	}

	rk.fingerprints = append(rk.fingerprints, realKey.GetFingerprint())
	return nil
}

// Fingerprints lists the fingerprints of every key added, in order
func (rk *RealKeyRing) Fingerprints() []string {
	return append([]string(nil), rk.fingerprints...)
}

// NewRealKey parses an ASCII-armored public key
func NewRealKey(armoredData string) (*RealKey, error) {
	if armoredData == "" {
		return nil, fmt.Errorf("armored data cannot be empty")
	}

	pgpKey, err := crypto.NewKeyFromArmored(armoredData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PGP key: %w", err)
	}

	return &RealKey{pgpKey: pgpKey}, nil
}

// IsExpired reports whether the key has expired
func (rk *RealKey) IsExpired() bool {
	return rk.pgpKey.IsExpired()
}

// CanVerify reports whether the key can verify signatures
func (rk *RealKey) CanVerify() bool {
	return rk.pgpKey.CanVerify()
}

// GetFingerprint returns the hex fingerprint
func (rk *RealKey) GetFingerprint() string {
	return rk.pgpKey.GetFingerprint()
}

// LoadKeyRingFromPath loads all ASCII-armored PGP public keys (*.asc) from
// the given directory.
func LoadKeyRingFromPath(keysPath string) (*RealKeyRing, error) {
	files, err := os.ReadDir(keysPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read keys directory: %w", err)
	}

	keyRing := NewRealKeyRing()
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".asc" {
			continue
		}

		filePath := filepath.Join(keysPath, file.Name())
		if err := validateKeyFile(filePath); err != nil {
			return nil, fmt.Errorf("invalid key file '%s': %w", file.Name(), err)
		}

		keyData, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}

		if err := addArmored(keyRing, string(keyData)); err != nil {
			return nil, fmt.Errorf("invalid key in file '%s': %w", file.Name(), err)
		}
	}

	if len(keyRing.fingerprints) == 0 {
		return nil, fmt.Errorf("no .asc keys found in directory")
	}
	return keyRing, nil
}

// LoadKeyRingFromStrings loads PGP public keys from ASCII-armored strings
func LoadKeyRingFromStrings(armoredKeys []string) (*RealKeyRing, error) {
	if len(armoredKeys) == 0 {
		return nil, fmt.Errorf("no armored keys provided")
	}

	keyRing := NewRealKeyRing()
	for i, armoredKey := range armoredKeys {
		if err := addArmored(keyRing, armoredKey); err != nil {
			return nil, fmt.Errorf("invalid key at index %d: %w", i, err)
		}
	}
	return keyRing, nil
}

func addArmored(keyRing *RealKeyRing, armored string) error {
	key, err := NewRealKey(armored)
	if err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	return keyRing.AddKey(key)
}

// validateKeyFile checks if a key file has appropriate permissions and size
func validateKeyFile(filePath string) error {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("failed to access key file: %w", err)
	}

	if fileInfo.Size() > maxKeyFileSize {
		return fmt.Errorf("key file exceeds maximum allowed size of %d bytes", maxKeyFileSize)
	}

	// Check file permissions (allow both 0600 and 0644 for compatibility)
	perm := fileInfo.Mode().Perm()
	if perm != keyFileMode && perm != 0644 {
		return fmt.Errorf("key file has incorrect permissions. Expected %o or 0644, got %o", keyFileMode, perm)
	}

	return nil
}

// validateKey rejects keys that cannot verify today
func validateKey(key Key) error {
	if key == nil {
		return fmt.Errorf("key is nil")
	}
	if key.IsExpired() {
		return fmt.Errorf("key %s is expired", key.GetFingerprint())
	}
	if !key.CanVerify() {
		return fmt.Errorf("key %s cannot verify signatures", key.GetFingerprint())
	}
	return nil
}
