package model

// PaymentReceipt is what the payment collaborator reports when a booking
// has been paid.  PaymentID is nil when the collaborator does not expose
// one.
type PaymentReceipt struct {
	PaymentID     *uint64
	TransactionID string
	Amount        float64
	PaidAt        string
}
