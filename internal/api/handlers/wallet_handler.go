package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ridelink/ride-coordinator/internal/api/dto"
	"github.com/ridelink/ride-coordinator/internal/domain/user"
)

// RechargeWallet handles POST /v1/wallet/recharge
func (h *Handlers) RechargeWallet(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	var req dto.WalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	balance, err := h.Ledger.ApplyDelta(c.Request.Context(), userID, req.Amount, user.KindRecharge, req.Note)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.NewRelic.RecordWalletOperation(string(user.KindRecharge), req.Amount, "ok")
	c.JSON(http.StatusOK, dto.WalletResponse{UserID: userID, Balance: balance})
}

// WithdrawWallet handles POST /v1/wallet/withdraw
func (h *Handlers) WithdrawWallet(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	var req dto.WalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	balance, err := h.Ledger.ApplyDelta(c.Request.Context(), userID, req.Amount, user.KindWithdrawal, req.Note)
	if err != nil {
		h.NewRelic.RecordWalletOperation(string(user.KindWithdrawal), req.Amount, "refused")
		h.respondError(c, err)
		return
	}

	h.NewRelic.RecordWalletOperation(string(user.KindWithdrawal), req.Amount, "ok")
	c.JSON(http.StatusOK, dto.WalletResponse{UserID: userID, Balance: balance})
}

// ListTransactions handles GET /v1/wallet/transactions
func (h *Handlers) ListTransactions(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}

	txns, err := h.Ledger.Transactions(c.Request.Context(), userID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TransactionsResponse{UserID: userID, Transactions: txns})
}
