package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"storefront/internal/domain"
	"strings"
	"unicode"
)

// CardVault turns captured card fields into what may be stored. No
// authorization or charge ever happens here.
type CardVault interface {
	Tokenize(details domain.PaymentDetails) domain.StoredCard
}

type hmacVault struct {
	secret []byte
}

func NewCardVault(secret string) CardVault {
	return &hmacVault{secret: []byte(secret)}
}

// Tokenize keys the card number with HMAC-SHA256, keeps its last four
// digits and the expiry, and drops the CVV.
func (v *hmacVault) Tokenize(details domain.PaymentDetails) domain.StoredCard {
	digits := onlyDigits(details.CardNumber)
	card := domain.StoredCard{Expiry: strings.TrimSpace(details.Expiry)}
	if digits == "" {
		return card
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(digits))
	card.Token = "tok_" + hex.EncodeToString(mac.Sum(nil))

	if len(digits) > 4 {
		card.Last4 = digits[len(digits)-4:]
	} else {
		card.Last4 = digits
	}
	return card
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
