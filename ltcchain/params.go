/*
Package ltcchain pins the Litecoin network parameters onto the btcsuite
chaincfg machinery, so the rest of the program can use btcutil address
handling against LTC instead of BTC.
*/
package ltcchain

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// SLIP-44 coin type of Litecoin mainnet.
const CoinTypeLitecoin = 2

// Litecoin p2p network magics.
const (
	MainNetMagic  wire.BitcoinNet = 0xdbb6c0fb
	TestNet4Magic wire.BitcoinNet = 0xf1c8d2fd
)

// MainNetParams holds the Litecoin mainnet parameters.
// Address prefixes: L... (P2PKH), M... (P2SH), ltc1... (bech32).
var MainNetParams chaincfg.Params

// TestNet4Params holds the Litecoin testnet (v4) parameters.
var TestNet4Params chaincfg.Params

func init() {
	// Start from the BTC parameter set and swap out everything
	// address-encoding related.
	MainNetParams = chaincfg.MainNetParams
	MainNetParams.Name = "ltc-mainnet"
	MainNetParams.Net = MainNetMagic
	MainNetParams.DefaultPort = "9333"
	MainNetParams.PubKeyHashAddrID = 0x30 // L...
	MainNetParams.ScriptHashAddrID = 0x32 // M...
	MainNetParams.PrivateKeyID = 0xb0
	MainNetParams.Bech32HRPSegwit = "ltc"
	MainNetParams.HDPrivateKeyID = [4]byte{0x01, 0x9d, 0x9c, 0xfe} // Ltpv
	MainNetParams.HDPublicKeyID = [4]byte{0x01, 0x9d, 0xa4, 0x62}  // Ltub
	MainNetParams.HDCoinType = CoinTypeLitecoin

	TestNet4Params = chaincfg.TestNet3Params
	TestNet4Params.Name = "ltc-testnet4"
	TestNet4Params.Net = TestNet4Magic
	TestNet4Params.DefaultPort = "19335"
	TestNet4Params.PubKeyHashAddrID = 0x6f // m or n
	TestNet4Params.ScriptHashAddrID = 0x3a // Q...
	TestNet4Params.PrivateKeyID = 0xef
	TestNet4Params.Bech32HRPSegwit = "tltc"
	TestNet4Params.HDPrivateKeyID = [4]byte{0x04, 0x36, 0xef, 0x7d} // ttpv
	TestNet4Params.HDPublicKeyID = [4]byte{0x04, 0x36, 0xf6, 0xe1}  // ttub
	TestNet4Params.HDCoinType = 1                                   // testnets share coin type 1

	mustRegister(&MainNetParams)
	mustRegister(&TestNet4Params)
}

func mustRegister(params *chaincfg.Params) {
	if err := chaincfg.Register(params); err != nil {
		panic("failed to register ltc network params: " + err.Error())
	}
}

// ParamsFromName maps a configuration string (e.g. "mainnet", "testnet")
// to the corresponding chain parameters.
// Unknown names default to mainnet.
func ParamsFromName(name string) *chaincfg.Params {
	switch name {
	case "testnet", "testnet4":
		return &TestNet4Params
	case "mainnet":
		return &MainNetParams
	default:
		return &MainNetParams
	}
}
