package posting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/harryospicon/catarse/internal/balance"
)

// PostResponse reports the outcome of a posting trigger.
type PostResponse struct {
	Posted       bool                  `json:"posted"`
	Transactions []TransactionResponse `json:"transactions,omitempty"`
}

// TransactionResponse is the wire form of a balance transaction.
type TransactionResponse struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"project_id,omitempty"`
	ContributionID string          `json:"contribution_id,omitempty"`
	UserID         string          `json:"user_id"`
	EventKind      string          `json:"event_kind"`
	Amount         decimal.Decimal `json:"amount"`
	CreatedAt      time.Time       `json:"created_at"`
}

// LateConfirmationRequest names the contribution confirmed after its project
// finished.
type LateConfirmationRequest struct {
	ContributionID string `json:"contribution_id"`
}

// TransferRequestBody carries a user withdrawal request.
type TransferRequestBody struct {
	Amount decimal.Decimal `json:"amount"`
}

// BalanceResponse is the wire form of a user's balance position.
type BalanceResponse struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
	AsOf   time.Time       `json:"as_of"`
}

// StatementResponse lists a user's transactions.
type StatementResponse struct {
	UserID       string                `json:"user_id"`
	Transactions []TransactionResponse `json:"transactions"`
}

// CanExpireResponse reports whether a refund credit can still expire.
type CanExpireResponse struct {
	TransactionID string `json:"transaction_id"`
	CanExpire     bool   `json:"can_expire"`
}

// ContributionStatusResponse reports which postings a contribution has received.
type ContributionStatusResponse struct {
	ContributionID string `json:"contribution_id"`
	Refunded       bool   `json:"refunded"`
	ChargedBack    bool   `json:"chargedback"`
}

// SweepResponse reports the outcome of a manually triggered sweep.
type SweepResponse struct {
	Expired      int                   `json:"expired"`
	Transactions []TransactionResponse `json:"transactions,omitempty"`
}

func toTransactionResponse(t balance.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:        t.ID.String(),
		UserID:    t.UserID.String(),
		EventKind: string(t.EventKind),
		Amount:    t.Amount,
		CreatedAt: t.CreatedAt,
	}
	if t.ProjectID.Valid {
		resp.ProjectID = t.ProjectID.UUID.String()
	}
	if t.ContributionID.Valid {
		resp.ContributionID = t.ContributionID.UUID.String()
	}
	return resp
}

func toTransactionResponses(txs []balance.Transaction) []TransactionResponse {
	if len(txs) == 0 {
		return nil
	}
	out := make([]TransactionResponse, len(txs))
	for i, t := range txs {
		out[i] = toTransactionResponse(t)
	}
	return out
}
