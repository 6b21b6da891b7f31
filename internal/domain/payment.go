package domain

// PaymentDetails are the card fields captured at checkout. They are never
// sent to a processor.
type PaymentDetails struct {
	CardNumber string
	Expiry     string
	CVV        string
}

// StoredCard is what the ledger keeps of a card: a keyed token and the last
// four digits. The CVV is dropped.
type StoredCard struct {
	Token  string
	Last4  string
	Expiry string
}
