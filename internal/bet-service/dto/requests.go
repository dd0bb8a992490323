package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateBetRequest struct {
	Description  string          `json:"description"`
	Stake        decimal.Decimal `json:"stake"` // ex: "10.00"
	DueDate      time.Time       `json:"dueDate"`
	Visibility   string          `json:"visibility"` // public | private (default private)
	RecipientIDs []string        `json:"recipientIds"`
}

type ClaimRequest struct {
	Outcome string `json:"outcome"` // won | lost, do ponto de vista de quem declara
}

// ResolveRequest é o corpo opcional de confirm/dispute
type ResolveRequest struct {
	RecipientID string `json:"recipientId,omitempty"`
}

type ProfileRequest struct {
	PaymentHandle string `json:"paymentHandle"` // ex: "@alice" (o @ inicial é ignorado no link)
}
