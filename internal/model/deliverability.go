// internal/model/deliverability.go
package model

import "time"

type CheckStatus string

const (
	StatusGood     CheckStatus = "good"
	StatusWarning  CheckStatus = "warning"
	StatusCritical CheckStatus = "critical"
)

// Check types, in report order.
const (
	CheckSPF                = "SPF Record"
	CheckDKIM               = "DKIM Record"
	CheckDMARC              = "DMARC Record"
	CheckContent            = "Content Analysis"
	CheckAuthHeaders        = "Authentication Headers"
	CheckDomainVerification = "Domain Verification"
)

type DeliverabilityCheck struct {
	Type    string      `json:"type"`
	Status  CheckStatus `json:"status"`
	Details string      `json:"details"`
	Impact  string      `json:"impact"`
	Fix     string      `json:"fix"`
	Value   string      `json:"value,omitempty"`
}

type DeliverabilityReport struct {
	Domain               string                `json:"domain"`
	Checks               []DeliverabilityCheck `json:"checks"`
	SpamScore            int                   `json:"spamScore"`
	DeliverabilityRating string                `json:"deliverabilityRating"`
	Recommendations      []string              `json:"recommendations"`
	CheckedAt            time.Time             `json:"checkedAt"`
}

type DeliverabilitySummary struct {
	TotalChecks int    `json:"totalChecks"`
	Good        int    `json:"good"`
	Warnings    int    `json:"warnings"`
	Critical    int    `json:"critical"`
	SpamScore   int    `json:"spamScore"`
	Rating      string `json:"rating"`
}
