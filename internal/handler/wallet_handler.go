package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/shinyyama/herald-backend/internal/service"
	"github.com/shopspring/decimal"
)

// AuditQueue hands a wallet audit to the background worker.
type AuditQueue interface {
	EnqueueWalletAudit(ctx context.Context, uid string) (string, error)
}

type WalletHandler struct {
	svc    service.WalletService
	audits AuditQueue
}

// NewWalletHandler builds the wallet endpoints. audits may be nil when no
// worker is configured; queued audits then answer 503.
func NewWalletHandler(svc service.WalletService, audits AuditQueue) *WalletHandler {
	return &WalletHandler{svc: svc, audits: audits}
}

type ConvertRequest struct {
	Points int64 `json:"points" validate:"required"`
}

type SendRequest struct {
	Recipient string `json:"recipient" validate:"required,max=64"`
	Amount    int64  `json:"amount" validate:"required"`
}

type CheckoutItem struct {
	ProductID   string          `json:"productId" validate:"required,max=128"`
	Name        string          `json:"name" validate:"max=255"`
	Quantity    int             `json:"quantity" validate:"gte=1,lte=99"`
	PricePoints int64           `json:"pricePoints" validate:"gte=0,lte=1000000000"`
	PriceEspees decimal.Decimal `json:"priceEspees"`
}

type CheckoutRequest struct {
	Items []CheckoutItem `json:"items" validate:"required,min=1,dive"`
}

type StreamDonationRequest struct {
	HostID  string `json:"hostId" validate:"required,max=128"`
	Amount  int64  `json:"amount" validate:"required"`
	Message string `json:"message" validate:"max=255"`
}

type CauseDonationRequest struct {
	Amount int64 `json:"amount" validate:"required"`
}

func (h *WalletHandler) Get(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	w, err := h.svc.Get(c.Request().Context(), uid)
	if err != nil {
		return serviceError(c, err, "failed to fetch wallet")
	}
	return c.JSON(http.StatusOK, w)
}

func (h *WalletHandler) Transactions(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	list, err := h.svc.ListTransactions(c.Request().Context(), uid, queryLimit(c, 50))
	if err != nil {
		return serviceError(c, err, "failed to fetch transactions")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"transactions": list})
}

func (h *WalletHandler) Convert(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	var req ConvertRequest
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	w, err := h.svc.Convert(c.Request().Context(), uid, req.Points)
	if err != nil {
		return serviceError(c, err, "conversion failed")
	}
	return c.JSON(http.StatusOK, w)
}

func (h *WalletHandler) Send(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	var req SendRequest
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	w, err := h.svc.Send(c.Request().Context(), uid, req.Recipient, req.Amount)
	if err != nil {
		return serviceError(c, err, "transfer failed")
	}
	return c.JSON(http.StatusOK, w)
}

func (h *WalletHandler) Claim(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	w, err := h.svc.ClaimRewards(c.Request().Context(), uid)
	if err != nil {
		return serviceError(c, err, "claim failed")
	}
	return c.JSON(http.StatusOK, w)
}

func (h *WalletHandler) Audit(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	report, err := h.svc.Audit(c.Request().Context(), uid)
	if err != nil {
		return serviceError(c, err, "audit failed")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"balanced": report.Balanced(),
		"report":   report,
	})
}

func (h *WalletHandler) QueueAudit(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	if h.audits == nil {
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("unavailable", "audit worker not configured"))
	}
	id, err := h.audits.EnqueueWalletAudit(c.Request().Context(), uid)
	if err != nil {
		return serviceError(c, err, "failed to queue audit")
	}
	return c.JSON(http.StatusAccepted, map[string]string{"taskId": id})
}

func (h *WalletHandler) Checkout(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	var req CheckoutRequest
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	items := make([]model.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, model.OrderItem{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Quantity:    it.Quantity,
			PricePoints: it.PricePoints,
			PriceEspees: it.PriceEspees,
		})
	}
	order, err := h.svc.Purchase(c.Request().Context(), uid, items)
	if err != nil {
		return serviceError(c, err, "checkout failed")
	}
	return c.JSON(http.StatusCreated, order)
}

func (h *WalletHandler) DonateToStream(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	var req StreamDonationRequest
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	d, err := h.svc.Donate(c.Request().Context(), uid, service.StreamDonationInput{
		StreamID: c.Param("id"),
		HostID:   req.HostID,
		Amount:   req.Amount,
		Message:  req.Message,
	})
	if err != nil {
		return serviceError(c, err, "donation failed")
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *WalletHandler) DonateToCause(c echo.Context) error {
	uid, ok := currentUID(c)
	if !ok {
		return unauthorized(c)
	}
	var req CauseDonationRequest
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	d, err := h.svc.DonateToCause(c.Request().Context(), uid, c.Param("id"), req.Amount)
	if err != nil {
		return serviceError(c, err, "donation failed")
	}
	return c.JSON(http.StatusCreated, d)
}
