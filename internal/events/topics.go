package events

// Topic constants for domain events emitted by the settlement pipeline.
const (
	TopicOrderConfirmed  = "order.confirmed"
	TopicOrderCancelled  = "order.cancelled"
	TopicPaymentFailed   = "payment.failed"
	TopicPaymentDisputed = "payment.disputed"
)
