package ltcchain

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// ErrInvalidAddress is returned for any address string that does not decode
// to a supported Litecoin address on the configured network.
var ErrInvalidAddress = errors.New("invalid ltc address")

// Validator checks address strings against one configured network.
// It accepts legacy base58check (P2PKH, P2SH) and native segwit bech32.
// Anything else (foreign chain, wrong network, garbage) is rejected.
type Validator struct {
	ChainConfig *chaincfg.Params
}

func NewValidator(chainConfig *chaincfg.Params) *Validator {
	return &Validator{ChainConfig: chainConfig}
}

// Decode parses and checks an address string.
// The returned btcutil.Address is on the validator's network.
func (v *Validator) Decode(addr string) (btcutil.Address, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidAddress)
	}

	decoded, err := btcutil.DecodeAddress(addr, v.ChainConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	// DecodeAddress is lenient about which network a base58 prefix
	// belongs to, so re-check against ours.
	if !decoded.IsForNet(v.ChainConfig) {
		return nil, fmt.Errorf("%w: not a %s address", ErrInvalidAddress, v.ChainConfig.Name)
	}

	switch decoded.(type) {
	case *btcutil.AddressPubKeyHash,
		*btcutil.AddressScriptHash,
		*btcutil.AddressWitnessPubKeyHash,
		*btcutil.AddressWitnessScriptHash:
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: unsupported address kind %T", ErrInvalidAddress, decoded)
	}
}

// IsValid reports whether addr is a well-formed address on the
// validator's network.
func (v *Validator) IsValid(addr string) bool {
	_, err := v.Decode(addr)
	return err == nil
}
