package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"storefront/internal/domain"
	"storefront/internal/infrastructure/idempotency"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	msgMissingFields     = "Variant and quantity are required."
	msgInvalidQuantity   = "Quantity must be positive."
	msgVariantNotFound   = "Variant not found"
	msgProductNotFound   = "Product not found"
	msgInsufficientStock = "Insufficient stock"
	msgOrderFailed       = "Could not place order"
	msgCatalogFailed     = "Could not load catalog"
	msgInFlight          = "A request with this Idempotency-Key is already in progress."
	msgKeyReused         = "This Idempotency-Key was already used for a different request."
)

// checkoutBody is the wire form of a buy-now request. Buyer and payment
// fields are optional and default to the empty string.
type checkoutBody struct {
	VariantID  domain.VariantRef `json:"variant_id" binding:"required"`
	Quantity   int               `json:"quantity" binding:"required"`
	FullName   string            `json:"fullName"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone"`
	Address    string            `json:"address"`
	City       string            `json:"city"`
	State      string            `json:"state"`
	Zip        string            `json:"zip"`
	CardNumber string            `json:"cardNumber"`
	Expiry     string            `json:"expiry"`
	CVV        string            `json:"cvv"`
}

func (b checkoutBody) toRequest() domain.CheckoutRequest {
	return domain.CheckoutRequest{
		VariantRef: b.VariantID,
		Quantity:   b.Quantity,
		Buyer: domain.BuyerDetails{
			FullName: b.FullName,
			Email:    b.Email,
			Phone:    b.Phone,
			Address:  b.Address,
			City:     b.City,
			State:    b.State,
			Zip:      b.Zip,
		},
		Payment: domain.PaymentDetails{
			CardNumber: b.CardNumber,
			Expiry:     b.Expiry,
			CVV:        b.CVV,
		},
	}
}

func (h *handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		h.log.Error("list products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgCatalogFailed})
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *handler) getProduct(c *gin.Context) {
	p, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		if !errors.Is(err, domain.ErrProductNotFound) {
			h.log.Error("get product", zap.String("id", c.Param("id")), zap.Error(err))
		}
		status, msg := errorResponse(err, msgCatalogFailed)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) placeOrder(c *gin.Context) {
	var body checkoutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingFields})
		return
	}

	ctx := c.Request.Context()
	key := idempotency.Key(c.Request)
	var fingerprint string
	if key != "" && h.idem != nil {
		var err error
		if fingerprint, err = idempotency.Fingerprint(body); err != nil {
			h.log.Warn("idempotency fingerprint failed", zap.Error(err))
			key = ""
		}
	}
	if key != "" && h.idem != nil {
		if h.replay(c, key, fingerprint) {
			return
		}

		acquired, err := h.idem.Acquire(ctx, key)
		switch {
		case err != nil:
			h.log.Warn("idempotency acquire failed", zap.Error(err))
			key = ""
		case !acquired:
			c.JSON(http.StatusConflict, gin.H{"error": msgInFlight})
			return
		default:
			defer func() {
				if err := h.idem.Release(ctx, key); err != nil {
					h.log.Warn("idempotency release failed", zap.Error(err))
				}
			}()
			// The holder before us may have finished between the lookup
			// and the lock.
			if h.replay(c, key, fingerprint) {
				return
			}
		}
	}

	conf, err := h.checkout.Checkout(ctx, body.toRequest())
	if err != nil {
		status, msg := errorResponse(err, msgOrderFailed)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	resp, err := json.Marshal(conf)
	if err != nil {
		h.log.Error("encode confirmation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgOrderFailed})
		return
	}
	if key != "" && h.idem != nil {
		if err := h.idem.Put(ctx, key, idempotency.Response{Fingerprint: fingerprint, Body: resp}); err != nil {
			h.log.Warn("idempotency store failed", zap.String("order_number", conf.OrderNumber), zap.Error(err))
		}
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", resp)
}

// replay writes the cached response for key and reports whether it did. A
// key reused for a different request is rejected instead of replayed.
func (h *handler) replay(c *gin.Context, key, fingerprint string) bool {
	cached, ok, err := h.idem.Get(c.Request.Context(), key)
	if err != nil {
		h.log.Warn("idempotency lookup failed", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if cached.Fingerprint != fingerprint {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msgKeyReused})
		return true
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", cached.Body)
	return true
}

// errorResponse maps a domain failure to its status and public message.
// Storage failures never expose their text.
func errorResponse(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMissingFields):
		return http.StatusBadRequest, msgMissingFields
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, msgInvalidQuantity
	case errors.Is(err, domain.ErrVariantNotFound):
		return http.StatusBadRequest, msgVariantNotFound
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, msgProductNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest, msgInsufficientStock
	default:
		return http.StatusInternalServerError, fallback
	}
}
