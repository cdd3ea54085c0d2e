package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/chainledger/src/config"
	"github.com/username/chainledger/src/database"
	"github.com/username/chainledger/src/handlers"
	"github.com/username/chainledger/src/logger"
	"github.com/username/chainledger/src/parsers"
	"github.com/username/chainledger/src/processors"
	"github.com/username/chainledger/src/selectors"
	"github.com/username/chainledger/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Chainledger server starting...")

	logger.L.Info("Loading ledger profile...", "path", config.Cfg.ProfilePath)
	profile, err := parsers.ParseProfileFile(config.Cfg.ProfilePath)
	if err != nil {
		logger.L.Error("Failed to parse ledger profile", "path", config.Cfg.ProfilePath, "error", err)
		os.Exit(1)
	}
	if len(profile.Tracked) == 0 {
		logger.L.Error("Profile tracks no accounts. At least one 'add <address>' directive is required.")
		os.Exit(1)
	}

	apiKey := config.Cfg.EtherscanAPIKey
	if profile.EtherscanAPIKey != "" {
		apiKey = profile.EtherscanAPIKey
	}
	endBlock := config.Cfg.EndBlock
	if profile.EndBlock != "" {
		endBlock = profile.EndBlock
	}

	registry := processors.NewAccountRegistry()
	for _, tracked := range profile.Tracked {
		registry.MarkAdded(tracked.Address, tracked.Label)
	}
	for address, label := range profile.Labels {
		registry.SetLabel(address, label)
	}
	for _, address := range profile.Hidden {
		registry.Hide(address)
	}

	ignoredSymbols := make(map[string]bool, len(profile.IgnoredSymbols))
	for _, symbol := range profile.IgnoredSymbols {
		ignoredSymbols[symbol] = true
	}
	allowedContracts := make(map[string]processors.ContractInfo, len(profile.AllowedContracts))
	for _, contract := range profile.AllowedContracts {
		allowedContracts[strings.ToLower(contract.Address)] = processors.ContractInfo{
			Symbol: contract.Symbol,
			Name:   contract.Name,
		}
	}
	normalizer := processors.NewNormalizer(processors.NormalizerConfig{
		StartDate:        config.Cfg.StartDate,
		EndDate:          config.Cfg.EndDate,
		IgnoredSymbols:   ignoredSymbols,
		AllowedContracts: allowedContracts,
	}, registry)

	logger.L.Info("Profile loaded",
		"tracked", len(profile.Tracked),
		"hidden", len(profile.Hidden),
		"allowedContracts", len(profile.AllowedContracts),
		"ignoredSymbols", len(profile.IgnoredSymbols))

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	profitThreshold, err := decimal.NewFromString(config.Cfg.ProfitThreshold)
	if err != nil {
		logger.L.Error("Invalid PROFIT_THRESHOLD", "value", config.Cfg.ProfitThreshold, "error", err)
		os.Exit(1)
	}

	logger.L.Info("Initializing services and handlers...")
	etherscanClient := services.NewEtherscanClient(
		apiKey,
		config.Cfg.EtherscanBaseURL,
		config.Cfg.RequestsPerSec,
		config.Cfg.FetchMaxAttempts,
		config.Cfg.FetchBackoffBase,
		config.Cfg.FetchTimeout,
	)
	priceService := services.NewPriceService(config.Cfg.PriceAPIBaseURL, config.Cfg.FetchTimeout)
	classifier := selectors.NewClassifier()

	ledgerService := services.NewLedgerService(
		etherscanClient,
		priceService,
		registry,
		normalizer,
		classifier,
		reportCache,
		config.Cfg.NativeSymbol,
		config.Cfg.BenchmarkSymbol,
		config.Cfg.IncludeFees,
		profitThreshold,
		endBlock,
	)

	syncHandler := handlers.NewSyncHandler(ledgerService)
	reportHandler := handlers.NewReportHandler(ledgerService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/sync", syncHandler.HandleSync)
	apiRouter.HandleFunc("DELETE /api/transfers/all", syncHandler.HandleDeleteAllTransfers)
	apiRouter.HandleFunc("GET /api/report", reportHandler.HandleGetReport)
	apiRouter.HandleFunc("GET /api/lineitems", reportHandler.HandleGetLineItems)
	apiRouter.HandleFunc("GET /api/movements", reportHandler.HandleGetMovements)
	apiRouter.HandleFunc("GET /api/ledgers", reportHandler.HandleGetLedgers)
	apiRouter.HandleFunc("GET /api/ledgers/{symbol}", reportHandler.HandleGetLedger)
	apiRouter.HandleFunc("GET /api/positions", reportHandler.HandleGetPositions)
	apiRouter.HandleFunc("GET /api/accounts/unknown", reportHandler.HandleGetUnknownAccounts)
	apiRouter.HandleFunc("GET /api/selectors/unknown", reportHandler.HandleGetUnknownSelectors)
	apiRouter.HandleFunc("GET /api/export/tradesheet", reportHandler.HandleExportTradesheet)

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Chainledger backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
