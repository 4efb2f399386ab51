/*
Package hdwallet holds the master seed and derives payment addresses
from it (BIP39 mnemonic -> BIP32 tree -> per-index address).

The derivation path template is m/purpose'/coin'/account'/0/index with
purpose 84 (native segwit, ltc1...) by default and 44 (legacy, L...) as
a configuration choice. For a fixed seed and index the derived address
is always the same; that is what lets historical payments be reconciled.
*/
package hdwallet

import (
	"errors"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	bip39 "github.com/tyler-smith/go-bip39"

	"github.com/litepay-io/litepay-go/ltcchain"
)

const (
	PurposeSegwit = 84 // BIP84, bech32 addresses
	PurposeLegacy = 44 // BIP44, base58 addresses

	// entropy bits of a freshly generated mnemonic (24 words)
	freshEntropyBits = 256
)

var (
	// ErrInvalidMnemonic means the supplied mnemonic failed the BIP39
	// checksum / word list check. Fatal at startup: deriving from a
	// mistyped mnemonic produces an address family nobody can spend.
	ErrInvalidMnemonic = errors.New("invalid mnemonic phrase")

	// ErrInvalidIndex means the requested derivation index is out of
	// the non-hardened range.
	ErrInvalidIndex = errors.New("invalid derivation index")

	// ErrDerivationMismatch means a freshly derived address failed our
	// own validator. That is a configuration or library regression,
	// not a recoverable condition.
	ErrDerivationMismatch = errors.New("derived address failed self-validation")
)

// DerivedKey is the outcome of deriving one index.
// The private key handle stays unexported; it is never logged,
// serialized or otherwise copied out of this package.
type DerivedKey struct {
	Index   uint32
	Address string
	PubKey  *btcec.PublicKey

	privKey *hdkeychain.ExtendedKey
}

// Zero wipes the private key handle.
func (k *DerivedKey) Zero() {
	if k.privKey != nil {
		k.privKey.Zero()
		k.privKey = nil
	}
}

// Config for constructing a Wallet.
type Config struct {
	Mnemonic    string // supplied secret; empty means load from store or generate fresh
	Passphrase  string // optional BIP39 passphrase mixed into the seed
	ChainConfig *chaincfg.Params
	Purpose     uint32 // PurposeSegwit (default) or PurposeLegacy
	Account     uint32 // BIP44 account, usually 0
	Store       *SeedStore
}

// Wallet derives addresses from a single master seed.
// It is safe for concurrent use after construction; derivation is
// read-only against the cached account-level extended key.
type Wallet struct {
	chainConfig *chaincfg.Params
	purpose     uint32
	account     uint32

	// extended key at m/purpose'/coin'/account'/0 (external chain)
	externalBranch *hdkeychain.ExtendedKey

	validator *ltcchain.Validator
}

// New builds a Wallet from cfg. Resolution order for the mnemonic:
// cfg.Mnemonic, then the seed store, then a freshly generated one which
// is immediately persisted through the store.
func New(cfg *Config) (*Wallet, error) {
	if cfg.ChainConfig == nil {
		return nil, errors.New("hdwallet: nil chain config")
	}

	purpose := cfg.Purpose
	if purpose == 0 {
		purpose = PurposeSegwit
	}
	if purpose != PurposeSegwit && purpose != PurposeLegacy {
		return nil, fmt.Errorf("hdwallet: unsupported purpose %d", purpose)
	}

	mnemonic := cfg.Mnemonic
	if mnemonic == "" && cfg.Store != nil {
		stored, err := cfg.Store.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load stored mnemonic: %v", err)
		}
		mnemonic = stored
	}
	if mnemonic == "" {
		generated, err := generateMnemonic()
		if err != nil {
			return nil, err
		}
		mnemonic = generated
		if cfg.Store != nil {
			// persist before any address is handed out, otherwise a
			// crash strands every payment sent to derived addresses
			if err := cfg.Store.Save(mnemonic); err != nil {
				return nil, fmt.Errorf("failed to persist generated mnemonic: %v", err)
			}
		} else {
			logger.Warn("generated mnemonic has no backing store, addresses are unrecoverable after restart")
		}
	}

	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	seed := bip39.NewSeed(mnemonic, cfg.Passphrase)
	branch, err := deriveExternalBranch(seed, cfg.ChainConfig, purpose, cfg.Account)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"network": cfg.ChainConfig.Name,
		"purpose": purpose,
		"account": cfg.Account,
	}).Info("hd wallet initialized")

	return &Wallet{
		chainConfig:    cfg.ChainConfig,
		purpose:        purpose,
		account:        cfg.Account,
		externalBranch: branch,
		validator:      ltcchain.NewValidator(cfg.ChainConfig),
	}, nil
}

func generateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(freshEntropyBits)
	if err != nil {
		return "", fmt.Errorf("failed to gather entropy: %v", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to build mnemonic: %v", err)
	}
	return mnemonic, nil
}

// deriveExternalBranch walks m/purpose'/coin'/account'/0.
func deriveExternalBranch(seed []byte, chainConfig *chaincfg.Params, purpose, account uint32) (*hdkeychain.ExtendedKey, error) {
	master, err := hdkeychain.NewMaster(seed, chainConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build master key: %v", err)
	}
	defer master.Zero()

	steps := []uint32{
		hdkeychain.HardenedKeyStart + purpose,
		hdkeychain.HardenedKeyStart + chainConfig.HDCoinType,
		hdkeychain.HardenedKeyStart + account,
		0, // external chain
	}
	key := master
	for _, step := range steps {
		child, err := key.Derive(step)
		if err != nil {
			return nil, fmt.Errorf("failed to derive path step %d: %v", step, err)
		}
		if key != master {
			key.Zero()
		}
		key = child
	}
	return key, nil
}

// DeriveKey derives the address at the given index.
// Pure with respect to (seed, path, index); the caller owns index
// bookkeeping (see the indexstore package).
func (w *Wallet) DeriveKey(index uint32) (*DerivedKey, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}

	child, err := w.externalBranch.Derive(index)
	if err != nil {
		return nil, fmt.Errorf("failed to derive index %d: %v", index, err)
	}

	pubKey, err := child.ECPubKey()
	if err != nil {
		child.Zero()
		return nil, fmt.Errorf("failed to extract public key at index %d: %v", index, err)
	}

	address, err := w.addressFor(pubKey)
	if err != nil {
		child.Zero()
		return nil, err
	}

	// Self-check against our own validator. A mismatch is fatal:
	// it means derivation and validation disagree about the network.
	if !w.validator.IsValid(address) {
		child.Zero()
		return nil, fmt.Errorf("%w: %s", ErrDerivationMismatch, address)
	}

	return &DerivedKey{
		Index:   index,
		Address: address,
		PubKey:  pubKey,
		privKey: child,
	}, nil
}

func (w *Wallet) addressFor(pubKey *btcec.PublicKey) (string, error) {
	pkHash := btcutil.Hash160(pubKey.SerializeCompressed())

	switch w.purpose {
	case PurposeSegwit:
		addr, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, w.chainConfig)
		if err != nil {
			return "", fmt.Errorf("failed to build p2wpkh address: %v", err)
		}
		return addr.EncodeAddress(), nil
	case PurposeLegacy:
		addr, err := btcutil.NewAddressPubKeyHash(pkHash, w.chainConfig)
		if err != nil {
			return "", fmt.Errorf("failed to build p2pkh address: %v", err)
		}
		return addr.EncodeAddress(), nil
	default:
		return "", fmt.Errorf("unsupported purpose %d", w.purpose)
	}
}

// ChainConfig returns the network the wallet derives for.
func (w *Wallet) ChainConfig() *chaincfg.Params {
	return w.chainConfig
}
