package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/litepay-io/litepay-go/gateway"
	"github.com/litepay-io/litepay-go/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "LITEPAY_CONFIG"
)

func main() {
	logconfig.ConfigProductionLogger()

	// Tool to read environment variables
	viper.AutomaticEnv()

	// Optional configuration file; env vars alone are enough.
	if configFile := viper.GetString(ENV_CONFIG_FILE_PATH); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Printf("Error reading configuration file %s: %s\n", configFile, err)
			return
		}
	}

	cfg := PrepareGatewayConfig()
	g, err := gateway.New(cfg)
	if err != nil {
		fmt.Printf("Error initializing payment gateway: %s\n", err)
		return
	}
	defer g.Close()

	g.Start()

	server := gateway.NewHttpServer(
		viper.GetString("HTTP_IP"),
		httpPortOrDefault(),
		g,
	)
	go server.Run()

	fmt.Println("Payment gateway running... press Ctrl+C to stop")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println("Shutting down")
}

func httpPortOrDefault() string {
	port := viper.GetString("HTTP_PORT")
	if port == "" {
		port = "8090"
	}
	return port
}

// PrepareGatewayConfig reads configuration variables and returns a
// gateway.Config.
func PrepareGatewayConfig() *gateway.Config {
	fallback := decimal.NewFromInt(65) // last-resort LTC/USD quote
	if raw := viper.GetString("FALLBACK_RATE"); raw != "" {
		if parsed, err := decimal.NewFromString(raw); err == nil {
			fallback = parsed
		}
	}

	quotas := map[string]int64{}
	if limit := viper.GetInt64("LITECOINSPACE_DAILY_QUOTA"); limit > 0 {
		quotas["litecoinspace"] = limit
	}
	if limit := viper.GetInt64("BLOCKCYPHER_DAILY_QUOTA"); limit > 0 {
		quotas["blockcypher"] = limit
	}
	if limit := viper.GetInt64("COINGECKO_DAILY_QUOTA"); limit > 0 {
		quotas["coingecko"] = limit
	}

	dbFilePath := viper.GetString("DB_FILE_PATH")
	if dbFilePath == "" {
		dbFilePath = "./litepay.db"
	}

	return &gateway.Config{
		Network: viper.GetString("LTC_NETWORK"),
		// seed side
		Mnemonic:       viper.GetString("LTC_MNEMONIC"),
		SeedPassphrase: viper.GetString("LTC_SEED_PASSPHRASE"),
		SeedFilePath:   viper.GetString("SEED_FILE_PATH"),
		SeedEncryptKey: viper.GetString("SEED_ENCRYPT_KEY"),
		Purpose:        uint32(viper.GetUint("DERIVE_PURPOSE")),
		Account:        uint32(viper.GetUint("DERIVE_ACCOUNT")),
		// storage
		DbFilePath: dbFilePath,
		// explorer side
		SpaceURL:      viper.GetString("LITECOINSPACE_URL"),
		CypherURL:     viper.GetString("BLOCKCYPHER_URL"),
		CypherToken:   viper.GetString("BLOCKCYPHER_TOKEN"),
		HTTPTimeout:   viper.GetDuration("HTTP_TIMEOUT"),
		DailyQuotas:   quotas,
		WebsocketURL:  viper.GetString("LITECOINSPACE_WS_URL"),
		MempoolPoll:   viper.GetDuration("MEMPOOL_POLL_INTERVAL"),
		MempoolEvict:  viper.GetDuration("MEMPOOL_EVICT_INTERVAL"),
		MempoolRetain: viper.GetDuration("MEMPOOL_RETENTION"),
		MinConf:       viper.GetInt64("MIN_CONFIRMATIONS"),
		HighConf:      viper.GetInt64("HIGH_CONFIDENCE_CONFIRMATIONS"),
		FallbackRate:  fallback,
		RateCacheTTL:  viper.GetDuration("RATE_CACHE_TTL"),
	}
}
