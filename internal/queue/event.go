// Package queue moves messages between this service and RabbitMQ: the
// outbox relay publishes booking events to a topic exchange, and consumers
// react to no-show and payment messages.
package queue

// PaymentCompletedMessage is published by the payment collaborator once a
// booking has been paid.
type PaymentCompletedMessage struct {
	PaymentID     uint64  `json:"paymentId"`
	BookingID     uint64  `json:"bookingId"`
	Amount        float64 `json:"amount"`
	TransactionID string  `json:"transactionId"`
	PaidAt        string  `json:"paidAt"`
}

// Routing keys consumed by this service.
const (
	NoShowRoutingKey           = "booking.noshow"
	PaymentCompletedRoutingKey = "payment.completed"
)
