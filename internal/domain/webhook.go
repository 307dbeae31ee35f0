package domain

type WebhookStatus string

const (
	WebhookStatusReceived   WebhookStatus = "RECEIVED"
	WebhookStatusProcessing WebhookStatus = "PROCESSING"
	WebhookStatusSucceeded  WebhookStatus = "SUCCEEDED"
	WebhookStatusFailed     WebhookStatus = "FAILED"
)
