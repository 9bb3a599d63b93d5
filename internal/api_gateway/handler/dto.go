package handler

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/terra-payments-ledger/internal/domain/audit"
)

// CreatePaymentRequest represents a request to register a new payment
type CreatePaymentRequest struct {
	ProviderID        string          `json:"provider_id" binding:"required,uuid"`
	UserID            string          `json:"user_id" binding:"required,uuid"`
	ReservationCode   string          `json:"reservation_code" binding:"required,max=50"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency" binding:"required,oneof=USD CAD"`
	FundingType       string          `json:"funding_type" binding:"required,oneof=CARD BANK_ACCOUNT"`
	CardID            *string         `json:"card_id,omitempty" binding:"omitempty,uuid"`
	AccountID         *string         `json:"account_id,omitempty" binding:"omitempty,uuid"`
	ClientIDs         []string        `json:"client_ids" binding:"dive,uuid"`
	Description       *string         `json:"description,omitempty" binding:"omitempty,max=500"`
	ExpectedDebitDate *string         `json:"expected_debit_date,omitempty"`
}

// UpdatePaymentRequest represents a partial payment update; absent fields are left untouched
type UpdatePaymentRequest struct {
	Amount            *decimal.Decimal `json:"amount,omitempty"`
	Description       *string          `json:"description,omitempty" binding:"omitempty,max=500"`
	ExpectedDebitDate *string          `json:"expected_debit_date,omitempty"`
	ClientIDs         *[]string        `json:"client_ids,omitempty"`
	Paid              *bool            `json:"paid,omitempty"`
	Verified          *bool            `json:"verified,omitempty"`
	Notified          *bool            `json:"notified,omitempty"`
	Active            *bool            `json:"active,omitempty"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID                string   `json:"id"`
	ProviderID        string   `json:"provider_id"`
	ProviderName      string   `json:"provider_name"`
	UserID            string   `json:"user_id"`
	UserName          string   `json:"user_name"`
	ReservationCode   string   `json:"reservation_code"`
	Amount            string   `json:"amount"`
	Currency          string   `json:"currency"`
	FundingType       string   `json:"funding_type"`
	FundingID         string   `json:"funding_id"`
	FundingLabel      string   `json:"funding_label"`
	ClientIDs         []string `json:"client_ids"`
	ClientNames       []string `json:"client_names"`
	Description       *string  `json:"description,omitempty"`
	ExpectedDebitDate *string  `json:"expected_debit_date,omitempty"`
	Status            string   `json:"status"`
	Paid              bool     `json:"paid"`
	Verified          bool     `json:"verified"`
	Notified          bool     `json:"notified"`
	Active            bool     `json:"active"`
	DocumentID        string   `json:"document_id,omitempty"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
}

// PaymentListResponse represents a page of payments
type PaymentListResponse struct {
	Payments []PaymentResponse `json:"payments"`
}

// CancelPaymentResponse reports the amount credited back to the funding card
type CancelPaymentResponse struct {
	PaymentID      string `json:"payment_id"`
	RestoredAmount string `json:"restored_amount"`
}

// RechargeCardRequest represents a request to grow a card's limit and balance
type RechargeCardRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// CardResponse represents a funding card in API responses
type CardResponse struct {
	ID               string `json:"id"`
	Label            string `json:"label"`
	HolderName       string `json:"holder_name"`
	Currency         string `json:"currency"`
	AssignedLimit    string `json:"assigned_limit"`
	AvailableBalance string `json:"available_balance"`
	Active           bool   `json:"active"`
}

// GenerateBatchesRequest represents a request to draft batches for eligible payments
type GenerateBatchesRequest struct {
	SenderUserID string  `json:"sender_user_id" binding:"required,uuid"`
	ProviderID   *string `json:"provider_id,omitempty" binding:"omitempty,uuid"`
}

// CreateBatchRequest represents an operator-assembled batch
type CreateBatchRequest struct {
	ProviderID    string   `json:"provider_id" binding:"required,uuid"`
	SenderUserID  string   `json:"sender_user_id" binding:"required,uuid"`
	SelectedEmail string   `json:"selected_email" binding:"required,email"`
	Subject       string   `json:"subject" binding:"required,max=255"`
	Body          string   `json:"body"`
	PaymentIDs    []string `json:"payment_ids" binding:"required,min=1,dive,uuid"`
}

// UpdateBatchRequest represents edits to a draft
type UpdateBatchRequest struct {
	SelectedEmail *string `json:"selected_email,omitempty" binding:"omitempty,email"`
	Subject       *string `json:"subject,omitempty" binding:"omitempty,max=255"`
	Body          *string `json:"body,omitempty"`
}

// SendBatchRequest carries optional last-minute edits
type SendBatchRequest struct {
	Subject *string `json:"subject,omitempty" binding:"omitempty,max=255"`
	Body    *string `json:"body,omitempty"`
}

// BatchResponse represents a notification batch in API responses
type BatchResponse struct {
	ID            string   `json:"id"`
	ProviderID    string   `json:"provider_id"`
	ProviderName  string   `json:"provider_name,omitempty"`
	SelectedEmail string   `json:"selected_email"`
	SenderUserID  string   `json:"sender_user_id"`
	Subject       string   `json:"subject"`
	Body          string   `json:"body"`
	State         string   `json:"state"`
	PaymentCount  int      `json:"payment_count"`
	TotalAmount   string   `json:"total_amount"`
	PaymentIDs    []string `json:"payment_ids,omitempty"`
	GeneratedAt   string   `json:"generated_at"`
	SentAt        string   `json:"sent_at,omitempty"`
}

// GenerateBatchesResponse lists the drafts created
type GenerateBatchesResponse struct {
	Count   int             `json:"count"`
	Batches []BatchResponse `json:"batches"`
}

// BatchListResponse represents a page of batches
type BatchListResponse struct {
	Batches []BatchResponse `json:"batches"`
}

// SendBatchResponse is the sent batch and the delivery acknowledgement
type SendBatchResponse struct {
	Batch            BatchResponse `json:"batch"`
	DeliveryMessage  string        `json:"delivery_message"`
	PaymentsNotified int64         `json:"payments_notified"`
}

// PaymentListQuery represents the filters accepted by the payment listing
type PaymentListQuery struct {
	ProviderID      string `form:"provider_id" binding:"omitempty,uuid"`
	Paid            *bool  `form:"paid"`
	Verified        *bool  `form:"verified"`
	Notified        *bool  `form:"notified"`
	Active          *bool  `form:"active"`
	ReservationCode string `form:"reservation_code"`
	Limit           int    `form:"limit,default=100" binding:"min=1,max=500"`
	Offset          int    `form:"offset,default=0" binding:"min=0"`
}

// BatchListQuery represents the filters accepted by the batch listing. Dates are YYYY-MM-DD.
type BatchListQuery struct {
	State      string `form:"state" binding:"omitempty,oneof=DRAFT SENT"`
	ProviderID string `form:"provider_id" binding:"omitempty,uuid"`
	DateFrom   string `form:"date_from"`
	DateTo     string `form:"date_to"`
	Limit      int    `form:"limit,default=100" binding:"min=1,max=500"`
	Offset     int    `form:"offset,default=0" binding:"min=0"`
}

// AuditListQuery bounds the audit trail lookup
type AuditListQuery struct {
	Limit int `form:"limit,default=50" binding:"min=1,max=500"`
}

// AuditListResponse represents the newest audit events for one entity
type AuditListResponse struct {
	Events []*audit.Event `json:"events"`
}

// PaymentsReportQuery represents the filters of the payments report. Dates are YYYY-MM-DD and inclusive.
type PaymentsReportQuery struct {
	DateFrom   string `form:"date_from"`
	DateTo     string `form:"date_to"`
	ProviderID string `form:"provider_id" binding:"omitempty,uuid"`
	Limit      int    `form:"limit,default=100" binding:"min=1,max=500"`
	Offset     int    `form:"offset,default=0" binding:"min=0"`
}

// CurrencyTotalResponse represents an amount summed within one currency
type CurrencyTotalResponse struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// PaymentStatsResponse represents the payment counters of the dashboard
type PaymentStatsResponse struct {
	Total     int64                   `json:"total"`
	Pending   int64                   `json:"pending"`
	Completed int64                   `json:"completed"`
	Cancelled int64                   `json:"cancelled"`
	Verified  int64                   `json:"verified"`
	Notified  int64                   `json:"notified"`
	Totals    []CurrencyTotalResponse `json:"totals"`
}

// CardBalanceResponse represents the active card balances of one currency
type CardBalanceResponse struct {
	Currency  string `json:"currency"`
	Cards     int64  `json:"cards"`
	Assigned  string `json:"assigned"`
	Available string `json:"available"`
	Committed string `json:"committed"`
}

// DashboardResponse represents the ledger dashboard
type DashboardResponse struct {
	Payments        PaymentStatsResponse  `json:"payments"`
	Cards           []CardBalanceResponse `json:"cards"`
	ActiveProviders int64                 `json:"active_providers"`
	Clients         int64                 `json:"clients"`
	GeneratedAt     time.Time             `json:"generated_at"`
}

// ReportRowResponse represents one payment of the report
type ReportRowResponse struct {
	PaymentID       string    `json:"payment_id"`
	ReservationCode string    `json:"reservation_code"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	FundingType     string    `json:"funding_type"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	ProviderName    string    `json:"provider_name"`
	UserName        string    `json:"user_name"`
	HolderName      string    `json:"holder_name"`
}

// PaymentsReportResponse represents one page of the report with the totals of the whole filtered set
type PaymentsReportResponse struct {
	Payments []ReportRowResponse     `json:"payments"`
	Matched  int64                   `json:"matched"`
	Totals   []CurrencyTotalResponse `json:"totals"`
}
