// src/handlers/sync_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/username/chainledger/src/logger"
	"github.com/username/chainledger/src/services"
	"github.com/username/chainledger/src/utils"
)

type SyncHandler struct {
	ledgerService services.LedgerService
}

func NewSyncHandler(ledgerService services.LedgerService) *SyncHandler {
	return &SyncHandler{ledgerService: ledgerService}
}

// HandleSync runs a full fetch/ingest cycle. The call is synchronous: the
// response carries the run summary once every tracked account was pulled.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	logger.L.Info("Handling sync request")

	summary, err := h.ledgerService.Sync(r.Context())
	if err != nil {
		logger.L.Error("Sync failed", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Sync failed: %v", err), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

func (h *SyncHandler) HandleDeleteAllTransfers(w http.ResponseWriter, r *http.Request) {
	logger.L.Info("Handling delete all transfers request")

	if err := h.ledgerService.DeleteAllTransfers(); err != nil {
		logger.L.Error("Error deleting transfer data", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error deleting transfer data: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "All ingested transfer data deleted successfully."})
}
