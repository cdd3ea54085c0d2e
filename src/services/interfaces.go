package services

import (
	"context"
	"errors"
	"io"

	"github.com/username/chainledger/src/models"
	"github.com/username/chainledger/src/selectors"
)

var (
	ErrSyncFailed   = errors.New("sync failed")
	ErrReportFailed = errors.New("report computation failed")
)

// LedgerReport holds everything one full engine run produces, as plain
// read-only data consumable by any serializer.
type LedgerReport struct {
	LineItems       []*models.LineItem                 `json:"line_items"`
	Movements       []models.Movement                  `json:"movements"`
	Ledgers         map[string]*models.CommodityLedger `json:"ledgers"`
	Positions       []models.Position                  `json:"positions"`
	UnknownAccounts []*models.Account                  `json:"unknown_accounts"`
	ContractSymbols map[string]string                  `json:"contract_symbols"`
	TxTypes         map[string]string                  `json:"tx_types"`
}

// SyncSummary reports the outcome of one fetch/ingest cycle.
type SyncSummary struct {
	RunID         string `json:"run_id"`
	Accounts      int    `json:"accounts"`
	TransferCount int    `json:"transfer_count"`
	ReceiptCount  int    `json:"receipt_count"`
}

// LedgerService is the orchestrator: it ingests transfer history for all
// tracked accounts and computes the double-entry/FIFO report over the
// ingested data.
type LedgerService interface {
	Sync(ctx context.Context) (*SyncSummary, error)
	GetReport() (*LedgerReport, error)
	GetLineItems() ([]*models.LineItem, error)
	GetMovements() ([]models.Movement, error)
	GetLedgers() (map[string]*models.CommodityLedger, error)
	GetLedger(symbol string) (*models.CommodityLedger, error)
	GetPositions() ([]models.Position, error)
	GetUnknownAccounts() ([]*models.Account, error)
	UnknownSelectors() []selectors.SelectorCount
	WriteTradesheetCSV(w io.Writer) error
	DeleteAllTransfers() error
	InvalidateCache()
}
