/*
Package gateway wires the payment core together behind one long-lived
service object: wallet, index store, explorers, quota, verification
engine, rate aggregator and mempool tracker, with an explicit
construction/teardown lifecycle instead of process-wide state.
*/
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/litepay-io/litepay-go/explorer"
	"github.com/litepay-io/litepay-go/hdwallet"
	"github.com/litepay-io/litepay-go/indexstore"
	"github.com/litepay-io/litepay-go/ltcchain"
	"github.com/litepay-io/litepay-go/mempool"
	"github.com/litepay-io/litepay-go/quota"
	"github.com/litepay-io/litepay-go/rates"
	"github.com/litepay-io/litepay-go/verify"
)

// Config carries everything a Gateway needs. cmd/ assembles it from
// viper; tests assemble it by hand with simulated backends.
type Config struct {
	Network string // "mainnet" or "testnet"

	// seed side
	Mnemonic       string
	SeedPassphrase string
	SeedFilePath   string
	SeedEncryptKey string
	Purpose        uint32
	Account        uint32

	// storage
	DbFilePath string

	// explorer side
	SpaceURL      string
	CypherURL     string
	CypherToken   string
	HTTPTimeout   time.Duration
	DailyQuotas   map[string]int64
	WebsocketURL  string // optional push feed
	MempoolPoll   time.Duration
	MempoolEvict  time.Duration
	MempoolRetain time.Duration
	MinConf       int64
	HighConf      int64
	FallbackRate  decimal.Decimal
	RateCacheTTL  time.Duration
}

// Gateway is the storefront-facing facade over the payment core.
type Gateway struct {
	wallet    *hdwallet.Wallet
	indexes   *indexstore.Store
	validator *ltcchain.Validator
	engine    *verify.Engine
	rates     *rates.Aggregator
	tracker   *mempool.Tracker
	wsfeed    *mempool.WSFeed

	indexStorage *indexstore.SQLiteIndexStorage
	quotaStorage *quota.SQLiteQuotaStorage
	ledger       *verify.SQLiteLedgerStorage

	cancel context.CancelFunc
}

// New builds the full gateway from config.
func New(cfg *Config) (*Gateway, error) {
	chainConfig := ltcchain.ParamsFromName(cfg.Network)
	validator := ltcchain.NewValidator(chainConfig)

	// seed + wallet
	var store *hdwallet.SeedStore
	if cfg.SeedFilePath != "" {
		store = hdwallet.NewSeedStore(cfg.SeedFilePath, cfg.SeedEncryptKey)
	}
	wallet, err := hdwallet.New(&hdwallet.Config{
		Mnemonic:    cfg.Mnemonic,
		Passphrase:  cfg.SeedPassphrase,
		ChainConfig: chainConfig,
		Purpose:     cfg.Purpose,
		Account:     cfg.Account,
		Store:       store,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize wallet: %v", err)
	}

	// durable stores share one sqlite file
	indexStorage, err := indexstore.NewSQLiteIndexStorage(cfg.DbFilePath, cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to open index storage: %v", err)
	}
	quotaStorage, err := quota.NewSQLiteQuotaStorage(cfg.DbFilePath, cfg.Network)
	if err != nil {
		indexStorage.Close()
		return nil, fmt.Errorf("failed to open quota storage: %v", err)
	}
	ledger, err := verify.NewSQLiteLedgerStorage(cfg.DbFilePath, cfg.Network)
	if err != nil {
		indexStorage.Close()
		quotaStorage.Close()
		return nil, fmt.Errorf("failed to open seen-utxo ledger: %v", err)
	}

	limiter := quota.NewTracker(quotaStorage, cfg.DailyQuotas)

	// explorer sources, primary first
	spaceURL := cfg.SpaceURL
	if spaceURL == "" {
		spaceURL = explorer.SpaceMainnetURL
	}
	space := explorer.NewSpaceClient(spaceURL, cfg.HTTPTimeout, limiter)
	clients := []explorer.Client{space}
	priceSources := []explorer.PriceSource{space}
	if cfg.CypherURL != "" {
		clients = append(clients, explorer.NewCypherClient(cfg.CypherURL, cfg.CypherToken, cfg.HTTPTimeout, limiter))
	}
	priceSources = append(priceSources, explorer.NewGeckoClient(explorer.GeckoURL, cfg.HTTPTimeout, limiter))

	tracker := mempool.NewTracker(&mempool.Config{
		Client:        space,
		PollInterval:  cfg.MempoolPoll,
		EvictInterval: cfg.MempoolEvict,
		Retention:     cfg.MempoolRetain,
	})

	engine, err := verify.NewEngine(&verify.Config{
		Clients:          clients,
		Validator:        validator,
		Ledger:           ledger,
		Mempool:          tracker,
		MinConfirmations: cfg.MinConf,
		HighConfidence:   cfg.HighConf,
	})
	if err != nil {
		indexStorage.Close()
		quotaStorage.Close()
		ledger.Close()
		return nil, err
	}

	aggregator := rates.NewAggregator(&rates.Config{
		Sources:  priceSources,
		Fallback: cfg.FallbackRate,
		CacheTTL: cfg.RateCacheTTL,
	})

	g := &Gateway{
		wallet:       wallet,
		indexes:      indexstore.NewStore(indexStorage),
		validator:    validator,
		engine:       engine,
		rates:        aggregator,
		tracker:      tracker,
		indexStorage: indexStorage,
		quotaStorage: quotaStorage,
		ledger:       ledger,
	}
	if cfg.WebsocketURL != "" {
		g.wsfeed = mempool.NewWSFeed(cfg.WebsocketURL, tracker)
	}
	return g, nil
}

// Start launches the background loops. It returns immediately.
func (g *Gateway) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel

	go func() {
		if err := g.tracker.Loop(ctx); err != nil && ctx.Err() == nil {
			logger.Errorf("mempool tracker loop exited: %v", err)
		}
	}()
	if g.wsfeed != nil {
		go func() {
			if err := g.wsfeed.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Errorf("websocket feed exited: %v", err)
			}
		}()
	}
}

// Close stops the loops and releases the stores.
func (g *Gateway) Close() {
	if g.cancel != nil {
		g.cancel()
	}
	g.indexStorage.Close()
	g.quotaStorage.Close()
	g.ledger.Close()
}

// NewAddress is one issued payment address.
type NewAddress struct {
	Address    string `json:"address"`
	Index      uint32 `json:"index"`
	PaymentURI string `json:"payment_uri"`
}

// RequestNewAddress allocates the next derivation index and derives a
// fresh address for it. The index is persisted before the address is
// returned, so a crash can never hand the same address to two orders.
func (g *Gateway) RequestNewAddress(amount int64) (*NewAddress, error) {
	index, err := g.indexes.NextIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate address index: %v", err)
	}
	key, err := g.wallet.DeriveKey(index)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	logger.WithFields(logger.Fields{
		"address": key.Address,
		"index":   index,
	}).Info("issued fresh payment address")

	return &NewAddress{
		Address:    key.Address,
		Index:      index,
		PaymentURI: hdwallet.PaymentURI(key.Address, amount),
	}, nil
}

// CheckPayment verifies a payment against an address.
func (g *Gateway) CheckPayment(ctx context.Context, address string, expected int64, requireConf bool) (*verify.Verdict, error) {
	return g.engine.VerifyPayment(ctx, address, expected, verify.Options{
		RequireConfirmations: requireConf,
	})
}

// CheckPaymentTx verifies a payment against a specific transaction.
func (g *Gateway) CheckPaymentTx(ctx context.Context, address, txid string, expected int64, requireConf bool) (*verify.Verdict, error) {
	return g.engine.VerifyPayment(ctx, address, expected, verify.Options{
		RequireConfirmations: requireConf,
		TxID:                 txid,
	})
}

// Track watches an address in the local mempool view for fast notice.
func (g *Gateway) Track(address string) error {
	if !g.validator.IsValid(address) {
		return ltcchain.ErrInvalidAddress
	}
	g.tracker.Track(address)
	return nil
}

// Untrack stops watching an address.
func (g *Gateway) Untrack(address string) {
	g.tracker.Untrack(address)
}

// Rate quotes LTC in the given fiat currency.
func (g *Gateway) Rate(ctx context.Context, currency string) decimal.Decimal {
	return g.rates.Rate(ctx, "LTC", currency)
}

// Convert turns a fiat price into litoshi at the current rate.
func (g *Gateway) Convert(ctx context.Context, fiat decimal.Decimal, currency string) int64 {
	return g.rates.Convert(ctx, fiat, currency)
}

// AddressSummary returns the lifetime received total and tx count of
// an address.
func (g *Gateway) AddressSummary(ctx context.Context, address string) (*explorer.AddressSummary, error) {
	return g.engine.AddressSnapshot(ctx, address)
}

// MarkSpent records a caller-initiated spend so the double-spend check
// stops flagging the consumed output.
func (g *Gateway) MarkSpent(address, txid string, vout uint32) error {
	if !g.validator.IsValid(address) {
		return ltcchain.ErrInvalidAddress
	}
	if _, err := chainhash.NewHashFromStr(txid); err != nil {
		return fmt.Errorf("%w: %v", verify.ErrInvalidTxID, err)
	}
	return g.engine.MarkSpent(address, txid, vout)
}
