package shared

import "strings"

// Currency is an ISO-4217 code accepted by the ledger
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyCAD Currency = "CAD"
	CurrencyMXN Currency = "MXN"
	CurrencyEUR Currency = "EUR"
)

// Valid reports whether c is a known currency
func (c Currency) Valid() bool {
	switch c {
	case CurrencyUSD, CurrencyCAD, CurrencyMXN, CurrencyEUR:
		return true
	}
	return false
}

// PaymentCurrency reports whether c may be used for new payments
func (c Currency) PaymentCurrency() bool {
	return c == CurrencyUSD || c == CurrencyCAD
}

// FundingType tags which funding reference a payment carries
type FundingType string

const (
	FundingTypeCard        FundingType = "CARD"
	FundingTypeBankAccount FundingType = "BANK_ACCOUNT"
)

// PaymentStatus defines payment lifecycle states
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// BatchState defines notification batch states
type BatchState string

const (
	BatchStateDraft BatchState = "DRAFT"
	BatchStateSent  BatchState = "SENT"
)

// DocumentStatus defines document processing states
type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "PENDING"
	DocumentStatusCompleted DocumentStatus = "COMPLETED"
	DocumentStatusError     DocumentStatus = "ERROR"
)

// ProcessingType identifies which extractor produced a reconciliation callback
type ProcessingType string

const (
	ProcessingTypeInvoice      ProcessingType = "INVOICE"
	ProcessingTypeBankDocument ProcessingType = "BANK_DOCUMENT"
)

// RecordAction is the change kind sent to the system of record
type RecordAction string

const (
	RecordActionCreate RecordAction = "CREATE"
	RecordActionUpdate RecordAction = "UPDATE"
	RecordActionDelete RecordAction = "DELETE"
)

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// Language selects the notification template
type Language string

const (
	LanguageSpanish Language = "Español"
	LanguageFrench  Language = "Français"
	LanguageEnglish Language = "English"
)

// ParseLanguage maps a provider's stored language onto a template language.
// Unknown values fall back to Spanish.
func ParseLanguage(raw string) Language {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "français", "francais", "french", "fr":
		return LanguageFrench
	case "english", "inglés", "ingles", "en":
		return LanguageEnglish
	default:
		return LanguageSpanish
	}
}
