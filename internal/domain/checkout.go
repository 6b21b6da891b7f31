package domain

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// BuyerDetails holds the optional buyer and shipping fields. Any field the
// client leaves out is stored as the empty string.
type BuyerDetails struct {
	FullName string
	Email    string
	Phone    string
	Address  string
	City     string
	State    string
	Zip      string
}

// VariantRef is a variant identifier as submitted by a client. It accepts
// both JSON numbers and JSON strings and is not assumed to be well formed.
type VariantRef string

func (r *VariantRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = VariantRef(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*r = VariantRef(n.String())
	return nil
}

type CheckoutRequest struct {
	VariantRef VariantRef
	Quantity   int
	Buyer      BuyerDetails
	Payment    PaymentDetails
}

// Confirmation is returned to the caller once a checkout completes.
type Confirmation struct {
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	TxnStatus   OrderStatus `json:"txn_status"`
}

type CheckoutState string

const (
	StateReceived        CheckoutState = "received"
	StateVariantResolved CheckoutState = "variant_resolved"
	StateStockChecked    CheckoutState = "stock_checked"
	StateOrderRecorded   CheckoutState = "order_recorded"
	StateItemRecorded    CheckoutState = "item_recorded"
	StateStockAdjusted   CheckoutState = "stock_adjusted"
	StateCompleted       CheckoutState = "completed"
)
