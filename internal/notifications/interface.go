package notifications

import "github.com/contentops/social-listening-bot/internal/models"

// NotificationInterface defines the contract for notification services
type NotificationInterface interface {
	SendRunSummary(summary *models.RunSummary) error
	SendComplianceAlert(alert *models.ComplianceAlert) error
}
