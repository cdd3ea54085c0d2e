package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port         string
	DatabasePath string
	LogLevel     string
	ProfilePath  string

	EtherscanAPIKey  string
	EtherscanBaseURL string
	PriceAPIBaseURL  string

	StartDate time.Time
	EndDate   time.Time
	EndBlock  string

	NativeSymbol    string
	BenchmarkSymbol string
	IncludeFees     bool
	ProfitThreshold string

	FetchMaxAttempts int
	FetchBackoffBase time.Duration
	FetchTimeout     time.Duration
	RequestsPerSec   float64
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	apiKey := getEnv("ETHERSCAN_API_KEY", "")
	if apiKey == "" {
		log.Println("WARNING: ETHERSCAN_API_KEY is not set. Sync against etherscan will fail; report endpoints over already-ingested data still work.")
	}

	startDate := getEnvAsDate("START_DATE", time.Time{})
	endDate := getEnvAsDate("END_DATE", time.Time{})
	if !startDate.IsZero() && !endDate.IsZero() && endDate.Before(startDate) {
		log.Fatalf("FATAL: END_DATE (%s) is before START_DATE (%s)", endDate.Format("2006-01-02"), startDate.Format("2006-01-02"))
	}

	requestsPerSec := 4.0
	if v := getEnv("REQUESTS_PER_SECOND", ""); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			log.Printf("WARNING: Invalid REQUESTS_PER_SECOND '%s'. Using default %.1f. Error: %v", v, requestsPerSec, err)
		} else {
			requestsPerSec = parsed
		}
	}

	Cfg = &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./chainledger.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		ProfilePath:  getEnv("PROFILE_PATH", "./ledger.profile"),

		EtherscanAPIKey:  apiKey,
		EtherscanBaseURL: getEnv("ETHERSCAN_BASE_URL", "https://api.etherscan.io/api"),
		PriceAPIBaseURL:  getEnv("PRICE_API_BASE_URL", "https://min-api.cryptocompare.com"),

		StartDate: startDate,
		EndDate:   endDate,
		EndBlock:  getEnv("END_BLOCK", ""),

		NativeSymbol:    getEnv("NATIVE_SYMBOL", "ETH"),
		BenchmarkSymbol: getEnv("BENCHMARK_SYMBOL", "BTC"),
		IncludeFees:     getEnvAsBool("INCLUDE_FEES", true),
		ProfitThreshold: getEnv("PROFIT_THRESHOLD", "0"),

		FetchMaxAttempts: getEnvAsInt("FETCH_MAX_ATTEMPTS", 5),
		FetchBackoffBase: getEnvAsDuration("FETCH_BACKOFF_BASE", 500*time.Millisecond),
		FetchTimeout:     getEnvAsDuration("FETCH_TIMEOUT", 20*time.Second),
		RequestsPerSec:   requestsPerSec,
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, Profile=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.ProfilePath)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Integer value for %s not set or empty, using default: %d", key, fallback)
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Duration value for %s not set or empty, using default: %s", key, fallback.String())
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

func getEnvAsDate(key string, fallback time.Time) time.Time {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.Parse("2006-01-02", valueStr); err == nil {
		return value
	}
	log.Printf("Invalid date value for %s ('%s'), expected YYYY-MM-DD, using default", key, valueStr)
	return fallback
}
