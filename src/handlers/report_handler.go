// src/handlers/report_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/chainledger/src/logger"
	"github.com/username/chainledger/src/models"
	"github.com/username/chainledger/src/processors"
	"github.com/username/chainledger/src/selectors"
	"github.com/username/chainledger/src/services"
	"github.com/username/chainledger/src/utils"
)

type ReportHandler struct {
	ledgerService services.LedgerService
}

func NewReportHandler(ledgerService services.LedgerService) *ReportHandler {
	return &ReportHandler{ledgerService: ledgerService}
}

func reportErrorStatus(err error) int {
	// Integrity violations in the ingested history are the caller's data
	// problem, not a server fault.
	if errors.Is(err, processors.ErrOversold) ||
		errors.Is(err, processors.ErrDisposalBeforeAcquisition) ||
		errors.Is(err, processors.ErrSymbolCollision) ||
		errors.Is(err, processors.ErrNonPositiveAmount) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// HandleGetReport serves the full engine output with ETag support, since the
// aggregate report is the heaviest payload and rarely changes between syncs.
func (h *ReportHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	logger.L.Debug("Handling GetReport request with ETag support")

	report, err := h.ledgerService.GetReport()
	if err != nil {
		logger.L.Error("Error computing ledger report", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error computing ledger report: %v", err), reportErrorStatus(err))
		return
	}
	if report.LineItems == nil {
		report.LineItems = []*models.LineItem{}
	}
	if report.Movements == nil {
		report.Movements = []models.Movement{}
	}
	if report.Positions == nil {
		report.Positions = []models.Position{}
	}
	if report.UnknownAccounts == nil {
		report.UnknownAccounts = []*models.Account{}
	}

	currentETag, etagErr := utils.GenerateETag(report)
	if etagErr != nil {
		logger.L.Error("Failed to generate ETag for ledger report", "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		clientETag := r.Header.Get("If-None-Match")
		for _, cETag := range strings.Split(clientETag, ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				logger.L.Info("ETag match for ledger report", "etag", currentETag)
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.L.Error("Error generating JSON response for ledger report", "error", err)
	}
}

func (h *ReportHandler) HandleGetLineItems(w http.ResponseWriter, r *http.Request) {
	lineItems, err := h.ledgerService.GetLineItems()
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving line items: %v", err), reportErrorStatus(err))
		return
	}
	if lineItems == nil {
		lineItems = []*models.LineItem{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lineItems)
}

func (h *ReportHandler) HandleGetMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.ledgerService.GetMovements()
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving movements: %v", err), reportErrorStatus(err))
		return
	}
	if movements == nil {
		movements = []models.Movement{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(movements)
}

func (h *ReportHandler) HandleGetLedgers(w http.ResponseWriter, r *http.Request) {
	ledgers, err := h.ledgerService.GetLedgers()
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving commodity ledgers: %v", err), reportErrorStatus(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ledgers)
}

func (h *ReportHandler) HandleGetLedger(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		utils.SendJSONError(w, "commodity symbol is required", http.StatusBadRequest)
		return
	}
	ledger, err := h.ledgerService.GetLedger(symbol)
	if err != nil {
		if errors.Is(err, services.ErrReportFailed) {
			utils.SendJSONError(w, fmt.Sprintf("Error retrieving ledger for %s: %v", symbol, err), reportErrorStatus(err))
			return
		}
		utils.SendJSONError(w, fmt.Sprintf("No ledger for commodity %s", symbol), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ledger)
}

func (h *ReportHandler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.ledgerService.GetPositions()
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving positions: %v", err), reportErrorStatus(err))
		return
	}
	if positions == nil {
		positions = []models.Position{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(positions)
}

func (h *ReportHandler) HandleGetUnknownAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ledgerService.GetUnknownAccounts()
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving unknown accounts: %v", err), reportErrorStatus(err))
		return
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accounts)
}

func (h *ReportHandler) HandleGetUnknownSelectors(w http.ResponseWriter, r *http.Request) {
	unknown := h.ledgerService.UnknownSelectors()
	if unknown == nil {
		unknown = []selectors.SelectorCount{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(unknown)
}

func (h *ReportHandler) HandleExportTradesheet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=\"tradesheet.csv\"")
	if err := h.ledgerService.WriteTradesheetCSV(w); err != nil {
		logger.L.Error("Error writing tradesheet CSV", "error", err)
	}
}
