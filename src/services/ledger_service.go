// src/services/ledger_service.go
package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/chainledger/src/database"
	"github.com/username/chainledger/src/logger"
	"github.com/username/chainledger/src/models"
	"github.com/username/chainledger/src/processors"
	"github.com/username/chainledger/src/selectors"
)

const (
	ckLedgerReport = "res_ledger_report"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type ledgerServiceImpl struct {
	client      *EtherscanClient
	prices      processors.PriceResolver
	registry    *processors.AccountRegistry
	normalizer  *processors.Normalizer
	classifier  *selectors.Classifier
	reportCache *cache.Cache
	computeMu   sync.Mutex

	nativeSymbol    string
	benchmark       string
	includeFees     bool
	profitThreshold decimal.Decimal
	endBlock        string
}

func NewLedgerService(
	client *EtherscanClient,
	prices processors.PriceResolver,
	registry *processors.AccountRegistry,
	normalizer *processors.Normalizer,
	classifier *selectors.Classifier,
	reportCache *cache.Cache,
	nativeSymbol string,
	benchmark string,
	includeFees bool,
	profitThreshold decimal.Decimal,
	endBlock string,
) LedgerService {
	return &ledgerServiceImpl{
		client:          client,
		prices:          prices,
		registry:        registry,
		normalizer:      normalizer,
		classifier:      classifier,
		reportCache:     reportCache,
		nativeSymbol:    nativeSymbol,
		benchmark:       benchmark,
		includeFees:     includeFees,
		profitThreshold: profitThreshold,
		endBlock:        endBlock,
	}
}

var allKinds = []models.TransferKind{
	models.KindNative,
	models.KindInternal,
	models.KindERC20,
	models.KindERC1155,
}

// Sync fetches transfer history for every tracked account plus transaction
// details and receipts for every new hash, storing everything in sqlite.
// The transfers table's UNIQUE constraint makes re-syncs idempotent.
func (s *ledgerServiceImpl) Sync(ctx context.Context) (*SyncSummary, error) {
	runID := uuid.NewString()
	overallStartTime := time.Now()
	logger.L.Info("Sync START", "runID", runID)

	if _, err := database.DB.Exec(`INSERT INTO sync_runs (id) VALUES (?)`, runID); err != nil {
		return nil, fmt.Errorf("%w: recording sync run: %v", ErrSyncFailed, err)
	}

	tracked := s.registry.TrackedAccounts()
	summary := &SyncSummary{RunID: runID, Accounts: len(tracked)}

	for _, account := range tracked {
		for _, kind := range allKinds {
			transfers, err := s.client.FetchTransfers(ctx, account.Address, kind, s.endBlock)
			if err != nil {
				s.finishRun(runID, summary.TransferCount, "failed")
				return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
			}
			stored, err := s.storeTransfers(transfers, runID)
			if err != nil {
				s.finishRun(runID, summary.TransferCount, "failed")
				return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
			}
			summary.TransferCount += stored
		}
	}

	receiptCount, err := s.fetchMissingDetails(ctx)
	if err != nil {
		s.finishRun(runID, summary.TransferCount, "failed")
		return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	summary.ReceiptCount = receiptCount

	s.finishRun(runID, summary.TransferCount, "ok")
	s.InvalidateCache()
	logger.L.Info("Sync END", "runID", runID, "transfers", summary.TransferCount,
		"receipts", summary.ReceiptCount, "duration", time.Since(overallStartTime))
	return summary, nil
}

func (s *ledgerServiceImpl) finishRun(runID string, transferCount int, status string) {
	_, err := database.DB.Exec(
		`UPDATE sync_runs SET finished_at = CURRENT_TIMESTAMP, transfer_count = ?, status = ? WHERE id = ?`,
		transferCount, status, runID,
	)
	if err != nil {
		logger.L.Error("Error updating sync run", "runID", runID, "error", err)
	}
}

func (s *ledgerServiceImpl) storeTransfers(transfers []models.Transfer, runID string) (int, error) {
	if len(transfers) == 0 {
		return 0, nil
	}
	dbTx, err := database.DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`INSERT OR IGNORE INTO transfers
		(hash, block_number, time_stamp, from_addr, to_addr, value, contract_address, token_symbol, token_decimal, kind, sync_run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	stored := 0
	for _, t := range transfers {
		res, err := stmt.Exec(t.Hash, t.BlockNumber, t.TimeStamp, t.From, t.To, t.Value,
			t.ContractAddress, t.TokenSymbol, t.TokenDecimal, string(t.Kind), runID)
		if err != nil {
			return 0, fmt.Errorf("error inserting transfer (hash %s): %w", t.Hash, err)
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			stored++
		}
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing transfers: %w", err)
	}
	return stored, nil
}

// fetchMissingDetails pulls transaction detail and receipt for every stored
// hash not yet in the transactions table. A hash whose details stay
// unavailable degrades that item's fee to zero and is logged, not fatal.
func (s *ledgerServiceImpl) fetchMissingDetails(ctx context.Context) (int, error) {
	rows, err := database.DB.Query(
		`SELECT DISTINCT hash FROM transfers WHERE hash NOT IN (SELECT hash FROM transactions)`)
	if err != nil {
		return 0, fmt.Errorf("error querying hashes missing details: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return 0, fmt.Errorf("error scanning hash: %w", err)
		}
		hashes = append(hashes, hash)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating hashes: %w", err)
	}

	fetched := 0
	for _, hash := range hashes {
		txn, err := s.client.FetchTransaction(ctx, hash)
		if err != nil {
			logger.L.Warn("Transaction detail unavailable, fee will be omitted", "hash", hash, "error", err)
			continue
		}
		_, err = database.DB.Exec(
			`INSERT OR REPLACE INTO transactions (hash, from_addr, input_data, gas_price) VALUES (?, ?, ?, ?)`,
			txn.Hash, txn.From, txn.Input, txn.GasPrice)
		if err != nil {
			return fetched, fmt.Errorf("error storing transaction %s: %w", hash, err)
		}

		receipt, err := s.client.FetchReceipt(ctx, hash)
		if err != nil {
			logger.L.Warn("Receipt unavailable, fee will be omitted", "hash", hash, "error", err)
			continue
		}
		_, err = database.DB.Exec(
			`INSERT OR IGNORE INTO receipts (hash, gas_used, effective_gas_price) VALUES (?, ?, ?)`,
			receipt.Hash, receipt.GasUsed, receipt.EffectiveGasPrice)
		if err != nil {
			return fetched, fmt.Errorf("error storing receipt %s: %w", hash, err)
		}
		fetched++
	}
	return fetched, nil
}

// GetReport computes (or returns the cached) full engine run: dedup/filter,
// double-entry reconstruction, movement expansion, FIFO matching, and the
// open-position report.
func (s *ledgerServiceImpl) GetReport() (*LedgerReport, error) {
	if cached, found := s.reportCache.Get(ckLedgerReport); found {
		logger.L.Debug("Cache hit for ledger report")
		return cached.(*LedgerReport), nil
	}

	// The engine run mutates shared state (the account registry, the
	// selector counters), so the miss path is serialized. Re-check the
	// cache under the lock; a concurrent caller may have filled it.
	s.computeMu.Lock()
	defer s.computeMu.Unlock()
	if cached, found := s.reportCache.Get(ckLedgerReport); found {
		logger.L.Debug("Cache hit for ledger report")
		return cached.(*LedgerReport), nil
	}
	logger.L.Info("Cache miss for ledger report, recalculating from DB")

	transfers, err := s.loadCanonicalTransfers()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReportFailed, err)
	}
	receipts, err := s.loadReceipts()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReportFailed, err)
	}
	senders, txTypes, err := s.loadTransactionDetails()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReportFailed, err)
	}

	builder := processors.NewLedgerBuilder(s.registry, s.normalizer, s.nativeSymbol, s.includeFees)
	ledgerResult, err := builder.Build(transfers, receipts, senders)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReportFailed, err)
	}

	generator := processors.NewMovementGenerator(s.prices)
	movements := generator.Generate(ledgerResult.LineItems)

	matcher := processors.NewFIFOMatcher()
	ledgers, err := matcher.Process(movements)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReportFailed, err)
	}

	reporter := processors.NewPositionReporter(s.prices, s.benchmark, s.profitThreshold)
	positions := reporter.Report(ledgers)

	report := &LedgerReport{
		LineItems:       ledgerResult.LineItems,
		Movements:       movements,
		Ledgers:         ledgers,
		Positions:       positions,
		UnknownAccounts: s.registry.UnknownAccounts(),
		ContractSymbols: ledgerResult.ContractSymbols,
		TxTypes:         txTypes,
	}
	s.reportCache.Set(ckLedgerReport, report, DefaultCacheExpiration)
	logger.L.Info("Ledger report computed", "lineItems", len(report.LineItems),
		"movements", len(report.Movements), "commodities", len(report.Ledgers),
		"positions", len(report.Positions))
	return report, nil
}

// loadCanonicalTransfers reads stored transfers in discovery order and
// applies the normalizer's dedup and filter rules once, here, before any
// aggregation.
func (s *ledgerServiceImpl) loadCanonicalTransfers() ([]models.Transfer, error) {
	rows, err := database.DB.Query(
		`SELECT hash, block_number, time_stamp, from_addr, to_addr, value, contract_address, token_symbol, token_decimal, kind
		 FROM transfers ORDER BY time_stamp ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("error querying transfers: %w", err)
	}
	defer rows.Close()

	byHash := make(map[string][]models.Transfer)
	var canonical []models.Transfer
	for rows.Next() {
		var t models.Transfer
		var kind string
		var blockNumber *string
		if err := rows.Scan(&t.Hash, &blockNumber, &t.TimeStamp, &t.From, &t.To, &t.Value,
			&t.ContractAddress, &t.TokenSymbol, &t.TokenDecimal, &kind); err != nil {
			return nil, fmt.Errorf("error scanning transfer row: %w", err)
		}
		if blockNumber != nil {
			t.BlockNumber = *blockNumber
		}
		t.Kind = models.TransferKind(kind)

		if !s.normalizer.Filter(t) {
			continue
		}
		merged := s.normalizer.MergeTransfer(byHash[t.Hash], t)
		if len(merged) > len(byHash[t.Hash]) {
			canonical = append(canonical, t)
		}
		byHash[t.Hash] = merged
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfer rows: %w", err)
	}
	logger.L.Debug("Loaded canonical transfers", "count", len(canonical))
	return canonical, nil
}

func (s *ledgerServiceImpl) loadReceipts() (map[string][]models.Receipt, error) {
	rows, err := database.DB.Query(`SELECT hash, gas_used, effective_gas_price FROM receipts`)
	if err != nil {
		return nil, fmt.Errorf("error querying receipts: %w", err)
	}
	defer rows.Close()

	receipts := make(map[string][]models.Receipt)
	for rows.Next() {
		var r models.Receipt
		if err := rows.Scan(&r.Hash, &r.GasUsed, &r.EffectiveGasPrice); err != nil {
			return nil, fmt.Errorf("error scanning receipt row: %w", err)
		}
		receipts[r.Hash] = append(receipts[r.Hash], r)
	}
	return receipts, rows.Err()
}

func (s *ledgerServiceImpl) loadTransactionDetails() (map[string]string, map[string]string, error) {
	rows, err := database.DB.Query(`SELECT hash, from_addr, input_data FROM transactions`)
	if err != nil {
		return nil, nil, fmt.Errorf("error querying transactions: %w", err)
	}
	defer rows.Close()

	senders := make(map[string]string)
	txTypes := make(map[string]string)
	for rows.Next() {
		var hash, from, input string
		if err := rows.Scan(&hash, &from, &input); err != nil {
			return nil, nil, fmt.Errorf("error scanning transaction row: %w", err)
		}
		senders[hash] = from
		txTypes[hash] = s.classifier.Classify(input)
	}
	return senders, txTypes, rows.Err()
}

func (s *ledgerServiceImpl) GetLineItems() ([]*models.LineItem, error) {
	report, err := s.GetReport()
	if err != nil {
		return nil, err
	}
	return report.LineItems, nil
}

func (s *ledgerServiceImpl) GetMovements() ([]models.Movement, error) {
	report, err := s.GetReport()
	if err != nil {
		return nil, err
	}
	return report.Movements, nil
}

func (s *ledgerServiceImpl) GetLedgers() (map[string]*models.CommodityLedger, error) {
	report, err := s.GetReport()
	if err != nil {
		return nil, err
	}
	return report.Ledgers, nil
}

func (s *ledgerServiceImpl) GetLedger(symbol string) (*models.CommodityLedger, error) {
	ledgers, err := s.GetLedgers()
	if err != nil {
		return nil, err
	}
	ledger, ok := ledgers[symbol]
	if !ok {
		return nil, fmt.Errorf("no ledger for commodity %s", symbol)
	}
	return ledger, nil
}

func (s *ledgerServiceImpl) GetPositions() ([]models.Position, error) {
	report, err := s.GetReport()
	if err != nil {
		return nil, err
	}
	return report.Positions, nil
}

func (s *ledgerServiceImpl) GetUnknownAccounts() ([]*models.Account, error) {
	report, err := s.GetReport()
	if err != nil {
		return nil, err
	}
	return report.UnknownAccounts, nil
}

func (s *ledgerServiceImpl) UnknownSelectors() []selectors.SelectorCount {
	return s.classifier.Unknown()
}

// WriteTradesheetCSV writes the movement stream as a tradesheet. Swap pairs
// collapse to one trade row (buy and sell side by side); deposits and
// withdrawals keep one row each.
func (s *ledgerServiceImpl) WriteTradesheetCSV(w io.Writer) error {
	report, err := s.GetReport()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Type", "Tx", "Buy", "Sell", "BuyUnits", "SellUnits"}); err != nil {
		return err
	}

	for _, mov := range report.Movements {
		var row []string
		switch mov.Type {
		case models.MovementDeposit:
			row = []string{mov.Date.Format(time.RFC3339), "Deposit", mov.Tx,
				mov.Symbol, "", mov.Amount.String(), ""}
		case models.MovementWithdraw:
			row = []string{mov.Date.Format(time.RFC3339), "Withdrawal", mov.Tx,
				"", mov.Symbol, "", mov.Amount.String()}
		case models.MovementBuy:
			// The SELL half of the pair is folded into this row.
			rowType := report.TxTypes[mov.Tx]
			if rowType == "" {
				rowType = "Trade"
			}
			row = []string{mov.Date.Format(time.RFC3339), rowType, mov.Tx,
				mov.Symbol, mov.OtherSymbol, mov.Amount.String(), mov.OtherAmount.String()}
		default:
			continue
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *ledgerServiceImpl) DeleteAllTransfers() error {
	for _, table := range []string{"transfers", "transactions", "receipts"} {
		if _, err := database.DB.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("error clearing %s: %w", table, err)
		}
	}
	s.InvalidateCache()
	logger.L.Info("Deleted all ingested transfer data")
	return nil
}

func (s *ledgerServiceImpl) InvalidateCache() {
	s.reportCache.Delete(ckLedgerReport)
	logger.L.Info("Invalidated ledger report cache")
}

// SortedSymbols is a convenience for deterministic iteration over the
// per-commodity ledgers in exports and tests.
func SortedSymbols(ledgers map[string]*models.CommodityLedger) []string {
	symbols := make([]string, 0, len(ledgers))
	for symbol := range ledgers {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
