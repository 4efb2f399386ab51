package hdwallet

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"os"

	logger "github.com/sirupsen/logrus"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// seed file layout: magic(8) || salt(32) || nonce(24) || ciphertext
var seedFileMagic = []byte("LTCSEED1")

const (
	seedSaltLen = 32

	// interactive-grade scrypt cost
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// SeedStore persists the mnemonic backup on disk.
// With a non-empty encryption key the file is sealed with
// XChaCha20-Poly1305 under a scrypt-derived key. Without one it falls
// back to plaintext, loudly: a degraded mode the operator opted into,
// not a silent one.
type SeedStore struct {
	Path          string
	EncryptionKey string
}

func NewSeedStore(path string, encryptionKey string) *SeedStore {
	return &SeedStore{Path: path, EncryptionKey: encryptionKey}
}

// Save writes the mnemonic to disk, replacing any previous backup.
func (s *SeedStore) Save(mnemonic string) error {
	if s.Path == "" {
		return errors.New("seed store has no path")
	}

	if s.EncryptionKey == "" {
		logger.WithField("path", s.Path).Warn("no seed encryption key configured, writing mnemonic backup in PLAINTEXT")
		return os.WriteFile(s.Path, []byte(mnemonic), 0600)
	}

	salt := make([]byte, seedSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %v", err)
	}

	aead, err := s.aead(salt)
	if err != nil {
		return err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %v", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(mnemonic), seedFileMagic)

	blob := make([]byte, 0, len(seedFileMagic)+len(salt)+len(nonce)+len(sealed))
	blob = append(blob, seedFileMagic...)
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)

	return os.WriteFile(s.Path, blob, 0600)
}

// Load reads the mnemonic back. A missing file is not an error; it
// returns "" so the caller can generate a fresh mnemonic.
func (s *SeedStore) Load() (string, error) {
	if s.Path == "" {
		return "", nil
	}

	blob, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	// plaintext backup (no magic header)
	if len(blob) < len(seedFileMagic) || string(blob[:len(seedFileMagic)]) != string(seedFileMagic) {
		if s.EncryptionKey != "" {
			logger.WithField("path", s.Path).Warn("seed backup on disk is plaintext although an encryption key is configured")
		}
		return string(blob), nil
	}

	if s.EncryptionKey == "" {
		return "", errors.New("seed backup is encrypted but no encryption key is configured")
	}

	rest := blob[len(seedFileMagic):]
	if len(rest) < seedSaltLen+chacha20poly1305.NonceSizeX {
		return "", errors.New("seed backup is truncated")
	}
	salt := rest[:seedSaltLen]
	nonce := rest[seedSaltLen : seedSaltLen+chacha20poly1305.NonceSizeX]
	sealed := rest[seedSaltLen+chacha20poly1305.NonceSizeX:]

	aead, err := s.aead(salt)
	if err != nil {
		return "", err
	}

	mnemonic, err := aead.Open(nil, nonce, sealed, seedFileMagic)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt seed backup (wrong key?): %v", err)
	}
	return string(mnemonic), nil
}

func (s *SeedStore) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(s.EncryptionKey), salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive file key: %v", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %v", err)
	}
	return aead, nil
}
