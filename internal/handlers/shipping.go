package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/logger"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/settings"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/shipping"
	"github.com/imrishuroy/go-fulfillment-orderflow/internal/validation"
	"go.uber.org/zap"
)

// ShippingOps are the manual provider operations exposed to the shop operator.
// *shipping.Client implements it.
type ShippingOps interface {
	TrackAWB(ctx context.Context, acct shipping.Account, awb string) (*shipping.Result, error)
	TrackAWBs(ctx context.Context, acct shipping.Account, awbs []string) (*shipping.Result, error)
	CheckServiceability(ctx context.Context, acct shipping.Account, q shipping.ServiceabilityQuery) (*shipping.Result, error)
	AssignAWB(ctx context.Context, acct shipping.Account, shipmentID string, courierID int) (*shipping.Result, error)
	GeneratePickup(ctx context.Context, acct shipping.Account, shipmentIDs []string) (*shipping.Result, error)
	GenerateManifest(ctx context.Context, acct shipping.Account, shipmentIDs []string) (*shipping.Result, error)
	GenerateLabel(ctx context.Context, acct shipping.Account, shipmentIDs []string) (*shipping.Result, error)
	GenerateInvoice(ctx context.Context, acct shipping.Account, orderIDs []string) (*shipping.Result, error)
}

// SettingsStore reads and writes the shipping settings document.
type SettingsStore interface {
	LoadShipping(ctx context.Context) (*settings.Shipping, error)
	SaveShipping(ctx context.Context, sh *settings.Shipping) error
}

// ShippingHandler serves the /admin/shipping routes.
type ShippingHandler struct {
	ops      ShippingOps
	settings SettingsStore
	validate *validatorv10.Validate
	log      *zap.Logger
}

func NewShippingHandler(ops ShippingOps, store SettingsStore, log *zap.Logger) *ShippingHandler {
	return &ShippingHandler{ops: ops, settings: store, validate: validation.New(), log: log}
}

func (h *ShippingHandler) Register(r gin.IRouter) {
	r.GET("/track/:awb", h.TrackAWB)
	r.POST("/track", h.TrackAWBs)
	r.GET("/serviceability", h.CheckServiceability)
	r.POST("/awb", h.AssignAWB)
	r.POST("/pickup", h.shipmentBatch(ShippingOps.GeneratePickup))
	r.POST("/manifest", h.shipmentBatch(ShippingOps.GenerateManifest))
	r.POST("/label", h.shipmentBatch(ShippingOps.GenerateLabel))
	r.POST("/invoice", h.GenerateInvoice)
	r.GET("/settings", h.GetSettings)
	r.PUT("/settings", h.UpdateSettings)
}

func (h *ShippingHandler) TrackAWB(c *gin.Context) {
	awb := strings.TrimSpace(c.Param("awb"))
	h.withAccount(c, "track awb", func(ctx context.Context, acct shipping.Account) (*shipping.Result, error) {
		return h.ops.TrackAWB(ctx, acct, awb)
	})
}

func (h *ShippingHandler) TrackAWBs(c *gin.Context) {
	var req validation.TrackAWBsRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	h.withAccount(c, "track awbs", func(ctx context.Context, acct shipping.Account) (*shipping.Result, error) {
		return h.ops.TrackAWBs(ctx, acct, req.AWBs)
	})
}

func (h *ShippingHandler) CheckServiceability(c *gin.Context) {
	q := shipping.ServiceabilityQuery{
		PickupPostcode:   strings.TrimSpace(c.Query("pickup_postcode")),
		DeliveryPostcode: strings.TrimSpace(c.Query("delivery_postcode")),
	}
	if q.PickupPostcode == "" || q.DeliveryPostcode == "" {
		fail(c, http.StatusBadRequest, "pickup_postcode and delivery_postcode are required", nil)
		return
	}
	if w := c.Query("weight"); w != "" {
		weight, err := strconv.ParseFloat(w, 64)
		if err != nil || weight < 0 {
			fail(c, http.StatusBadRequest, "weight must be a non-negative number", nil)
			return
		}
		q.WeightKg = weight
	}
	if v := c.Query("cod"); v != "" {
		cod, err := strconv.ParseBool(v)
		if err != nil {
			fail(c, http.StatusBadRequest, "cod must be a boolean", nil)
			return
		}
		q.COD = cod
	}
	h.withAccount(c, "check serviceability", func(ctx context.Context, acct shipping.Account) (*shipping.Result, error) {
		return h.ops.CheckServiceability(ctx, acct, q)
	})
}

func (h *ShippingHandler) AssignAWB(c *gin.Context) {
	var req validation.AssignAWBRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	h.withAccount(c, "assign awb", func(ctx context.Context, acct shipping.Account) (*shipping.Result, error) {
		return h.ops.AssignAWB(ctx, acct, req.ShipmentID, req.CourierID)
	})
}

func (h *ShippingHandler) shipmentBatch(op func(ShippingOps, context.Context, shipping.Account, []string) (*shipping.Result, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req validation.ShipmentIDsRequest
		if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
			return
		}
		h.withAccount(c, c.FullPath(), func(ctx context.Context, acct shipping.Account) (*shipping.Result, error) {
			return op(h.ops, ctx, acct, req.ShipmentIDs)
		})
	}
}

func (h *ShippingHandler) GenerateInvoice(c *gin.Context) {
	var req validation.InvoiceRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	h.withAccount(c, "generate invoice", func(ctx context.Context, acct shipping.Account) (*shipping.Result, error) {
		return h.ops.GenerateInvoice(ctx, acct, req.OrderIDs)
	})
}

// withAccount loads the provider account and writes the outcome of fn.
// Provider failures are reported as 502 with the normalised result.
func (h *ShippingHandler) withAccount(c *gin.Context, op string, fn func(ctx context.Context, acct shipping.Account) (*shipping.Result, error)) {
	ctx := c.Request.Context()
	log := logger.FromGin(c, h.log).With(zap.String("operation", op))

	cfg, err := h.settings.LoadShipping(ctx)
	if err != nil {
		log.Error("shipping settings unavailable", zap.Error(err))
		fail(c, http.StatusServiceUnavailable, "shipping settings unavailable", nil)
		return
	}
	if !cfg.Enabled {
		fail(c, http.StatusConflict, "shipping integration is disabled", nil)
		return
	}

	res, err := fn(ctx, cfg.Account())
	switch {
	case errors.Is(err, shipping.ErrInvalidRequest):
		fail(c, http.StatusBadRequest, err.Error(), nil)
		return
	case err != nil:
		log.Error("shipping operation failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "shipping operation failed", nil)
		return
	}

	if !res.Success {
		log.Warn("shipping provider call failed",
			zap.String("kind", string(res.Kind)),
			zap.Int("status_code", res.StatusCode),
		)
		fail(c, http.StatusBadGateway, res.Error, res)
		return
	}
	ok(c, "ok", res)
}

type settingsView struct {
	Enabled        bool       `json:"enabled"`
	TestMode       bool       `json:"testMode"`
	Email          string     `json:"email"`
	PasswordSet    bool       `json:"passwordSet"`
	PickupLocation string     `json:"pickupLocation"`
	LengthCm       float64    `json:"lengthCm,omitempty"`
	BreadthCm      float64    `json:"breadthCm,omitempty"`
	HeightCm       float64    `json:"heightCm,omitempty"`
	WeightKg       float64    `json:"weightKg,omitempty"`
	TokenExpiresAt *time.Time `json:"tokenExpiresAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// viewOf never exposes the password or the token value.
func viewOf(sh *settings.Shipping) settingsView {
	v := settingsView{
		Enabled:        sh.Enabled,
		TestMode:       sh.TestMode,
		Email:          sh.Email,
		PasswordSet:    sh.Password != "",
		PickupLocation: sh.PickupLocation,
		LengthCm:       sh.LengthCm,
		BreadthCm:      sh.BreadthCm,
		HeightCm:       sh.HeightCm,
		WeightKg:       sh.WeightKg,
		UpdatedAt:      sh.UpdatedAt,
	}
	if sh.Token != nil && !sh.Token.ExpiresAt.IsZero() {
		exp := sh.Token.ExpiresAt
		v.TokenExpiresAt = &exp
	}
	return v
}

func (h *ShippingHandler) GetSettings(c *gin.Context) {
	sh, err := h.settings.LoadShipping(c.Request.Context())
	if err != nil {
		logger.FromGin(c, h.log).Error("load shipping settings", zap.Error(err))
		fail(c, http.StatusServiceUnavailable, "shipping settings unavailable", nil)
		return
	}
	ok(c, "ok", viewOf(sh))
}

// UpdateSettings replaces the shipping settings. An empty password keeps the
// stored one; changing the login drops the persisted token.
func (h *ShippingHandler) UpdateSettings(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromGin(c, h.log)

	var req validation.ShippingSettingsRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	current, err := h.settings.LoadShipping(ctx)
	if err != nil {
		log.Error("load shipping settings", zap.Error(err))
		fail(c, http.StatusServiceUnavailable, "shipping settings unavailable", nil)
		return
	}

	next := &settings.Shipping{
		Enabled:        req.Enabled,
		TestMode:       req.TestMode,
		Email:          strings.TrimSpace(req.Email),
		Password:       current.Password,
		PickupLocation: strings.TrimSpace(req.PickupLocation),
		LengthCm:       req.LengthCm,
		BreadthCm:      req.BreadthCm,
		HeightCm:       req.HeightCm,
		WeightKg:       req.WeightKg,
		Token:          current.Token,
		UpdatedAt:      time.Now().UTC(),
	}
	if req.Password != "" {
		next.Password = req.Password
	}
	if next.Email != current.Email || next.Password != current.Password {
		next.Token = nil
	}

	if err := h.settings.SaveShipping(ctx, next); err != nil {
		log.Error("save shipping settings", zap.Error(err))
		fail(c, http.StatusInternalServerError, "could not save shipping settings", nil)
		return
	}
	log.Info("shipping settings updated", zap.Bool("enabled", next.Enabled), zap.Bool("test_mode", next.TestMode))
	ok(c, "Shipping settings updated", viewOf(next))
}
