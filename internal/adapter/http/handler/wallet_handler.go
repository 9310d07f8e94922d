package handler

import (
	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler serves the caller's own wallet and the reviewer wallet tools.
type WalletHandler struct {
	wallets ports.WalletService
	ledger  ports.LedgerService
	payouts ports.PayoutService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(wallets ports.WalletService, ledger ports.LedgerService, payouts ports.PayoutService) *WalletHandler {
	return &WalletHandler{wallets: wallets, ledger: ledger, payouts: payouts}
}

// callerWallet resolves (and lazily creates) the caller's wallet for role.
func (h *WalletHandler) callerWallet(c *gin.Context, requestedRole string) (*domain.Wallet, error) {
	sub, err := caller(c)
	if err != nil {
		return nil, err
	}
	role, err := callerWalletRole(c, requestedRole)
	if err != nil {
		return nil, err
	}
	return h.wallets.GetOrCreate(c.Request.Context(), sub, role)
}

// GetWallet handles GET /api/v1/wallet?role=.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	var q dto.WalletQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	w, err := h.callerWallet(c, q.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, w)
}

// ListLedger handles GET /api/v1/wallet/ledger?role=&page=&limit=.
func (h *WalletHandler) ListLedger(c *gin.Context) {
	var q struct {
		dto.WalletQuery
		dto.PageQuery
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	w, err := h.callerWallet(c, q.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, limit := pageOf(q.PageQuery)
	entries, total, err := h.ledger.ListEntries(c.Request.Context(), w.ID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, entries, page, limit, total)
}

// RequestPayout handles POST /api/v1/wallet/payout.
func (h *WalletHandler) RequestPayout(c *gin.Context) {
	var req dto.PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	w, err := h.callerWallet(c, req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	p, err := h.payouts.Create(c.Request.Context(), ports.CreatePayoutRequest{
		WalletID: w.ID,
		Amount:   req.Amount,
		Destination: domain.BankDestination{
			BankCode:      req.BankCode,
			AccountNumber: req.AccountNumber,
			AccountName:   req.AccountName,
		},
		RequestedBy: w.OwnerID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// ListPayouts handles GET /api/v1/wallet/payouts?role=&status=.
func (h *WalletHandler) ListPayouts(c *gin.Context) {
	var q struct {
		dto.WalletQuery
		dto.StatusQuery
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	w, err := h.callerWallet(c, q.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, limit := pageOf(q.PageQuery)
	params := ports.PayoutListParams{WalletID: &w.ID, Page: page, PageSize: limit}
	if q.Status != "" {
		status := domain.PayoutStatus(q.Status)
		params.Status = &status
	}

	payouts, total, err := h.payouts.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, payouts, page, limit, total)
}

// Adjust handles POST /api/v1/wallets/:id/adjustments (reviewer only).
func (h *WalletHandler) Adjust(c *gin.Context) {
	sub, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	res, err := h.wallets.Adjust(c.Request.Context(), ports.AdjustRequest{
		WalletID:    id,
		Amount:      req.Amount,
		ReferenceID: req.ReferenceID,
		Note:        req.Note,
		Actor:       sub,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res.Entry)
}

// SetStatus handles POST /api/v1/wallets/:id/status (reviewer only).
func (h *WalletHandler) SetStatus(c *gin.Context) {
	sub, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.WalletStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	w, err := h.wallets.SetStatus(c.Request.Context(), id, domain.WalletStatus(req.Status), sub)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, w)
}

// Audit handles GET /api/v1/wallets/:id/audit (reviewer only).
func (h *WalletHandler) Audit(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.wallets.Audit(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}
