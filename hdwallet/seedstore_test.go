package hdwallet

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedStoreEncryptedRoundTrip(t *testing.T) {
	path := t.TempDir() + "/seed.bin"
	store := NewSeedStore(path, "correct horse battery staple")

	require.NoError(t, store.Save(testMnemonic))

	// the mnemonic must not appear on disk in the clear
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "abandon"))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, got)
}

func TestSeedStoreWrongKey(t *testing.T) {
	path := t.TempDir() + "/seed.bin"
	require.NoError(t, NewSeedStore(path, "right key").Save(testMnemonic))

	_, err := NewSeedStore(path, "wrong key").Load()
	assert.Error(t, err)

	// and with no key at all it refuses rather than returning ciphertext
	_, err = NewSeedStore(path, "").Load()
	assert.Error(t, err)
}

func TestSeedStorePlaintextFallback(t *testing.T) {
	path := t.TempDir() + "/seed.txt"
	store := NewSeedStore(path, "")

	require.NoError(t, store.Save(testMnemonic))
	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, got)

	// an encrypted-capable store still reads a plaintext backup
	got, err = NewSeedStore(path, "some key").Load()
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, got)
}

func TestSeedStoreMissingFile(t *testing.T) {
	store := NewSeedStore(t.TempDir()+"/never-written", "k")
	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestSeedStoreTruncatedFile(t *testing.T) {
	path := t.TempDir() + "/seed.bin"
	require.NoError(t, os.WriteFile(path, append([]byte(nil), seedFileMagic...), 0600))

	_, err := NewSeedStore(path, "k").Load()
	assert.Error(t, err)
}
