package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindDeposit    TransactionKind = "deposit"
	KindWithdrawal TransactionKind = "withdrawal"
	KindTransfer   TransactionKind = "transfer"
	KindPayment    TransactionKind = "payment"
	KindSalary     TransactionKind = "salary"
	KindFee        TransactionKind = "fee"
)

func (k TransactionKind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindTransfer, KindPayment, KindSalary, KindFee:
		return true
	}
	return false
}

type StatusType string

const (
	StatusPending   StatusType = "pending"
	StatusCompleted StatusType = "completed"
	StatusFailed    StatusType = "failed"
)

func (s StatusType) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusFailed
}

type DepositMethod string

const (
	MethodBank   DepositMethod = "bank"
	MethodCard   DepositMethod = "card"
	MethodPayPal DepositMethod = "paypal"
	MethodCrypto DepositMethod = "crypto"
	MethodCash   DepositMethod = "cash"
	MethodBonus  DepositMethod = "bonus"
)

// Details carries the kind of a record together with the fields only that kind has.
type Details interface {
	Kind() TransactionKind
}

type DepositDetails struct {
	Method DepositMethod
}

func (DepositDetails) Kind() TransactionKind { return KindDeposit }

// TransferDetails names the other party of one leg of a transfer.
type TransferDetails struct {
	CounterpartyID   string
	CounterpartyName string
}

func (TransferDetails) Kind() TransactionKind { return KindTransfer }

// MovementDetails covers the kinds without extra fields.
type MovementDetails struct {
	Type TransactionKind
}

func (d MovementDetails) Kind() TransactionKind { return d.Type }

func Movement(kind TransactionKind) MovementDetails {
	return MovementDetails{Type: kind}
}

// TransactionRecord is one immutable ledger entry. Amount is signed: positive
// credits UserID, negative debits it.
type TransactionRecord struct {
	ID          string
	UserID      string
	Details     Details
	Description string
	Amount      decimal.Decimal
	Status      StatusType
	Timestamp   time.Time
}

func (r TransactionRecord) Kind() TransactionKind {
	if r.Details == nil {
		return ""
	}
	return r.Details.Kind()
}

// Counterparty returns the transfer counterparty, if the record is a transfer leg.
func (r TransactionRecord) Counterparty() (TransferDetails, bool) {
	d, ok := r.Details.(TransferDetails)
	return d, ok
}

// RecordInput is what callers hand to the ledger. ID and Timestamp are
// generated when empty, Status defaults to completed.
type RecordInput struct {
	ID          string
	UserID      string
	Details     Details
	Description string
	Amount      decimal.Decimal
	Status      StatusType
	Timestamp   time.Time
}

// recordJSON is the flat wire shape of the persisted log. RecipientEmail, Date
// and Time are only read, from logs written by the browser wallet.
type recordJSON struct {
	ID                      string          `json:"id"`
	UserID                  string          `json:"userId"`
	Type                    TransactionKind `json:"type"`
	Description             string          `json:"description"`
	Amount                  decimal.Decimal `json:"amount"`
	Status                  StatusType      `json:"status"`
	Timestamp               wireTime        `json:"timestamp"`
	Recipient               string          `json:"recipient,omitempty"`
	RecipientCounterpartyID string          `json:"recipientCounterpartyId,omitempty"`
	RecipientEmail          string          `json:"recipientEmail,omitempty"`
	Method                  DepositMethod   `json:"method,omitempty"`
	Date                    string          `json:"date,omitempty"`
	Time                    string          `json:"time,omitempty"`
}

// wireTime encodes as RFC 3339 and decodes either an RFC 3339 string or epoch
// milliseconds.
type wireTime struct {
	time.Time
}

func (t wireTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time)
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		t.Time = time.Time{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}
	millis, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", raw, err)
	}
	t.Time = time.UnixMilli(millis.IntPart()).UTC()
	return nil
}

// legacyDateTimeLayout is the date and time pair the browser wallet stores next
// to each record.
const legacyDateTimeLayout = "2006-01-02 15:04:05"

func (r TransactionRecord) MarshalJSON() ([]byte, error) {
	if r.Details == nil {
		return nil, fmt.Errorf("transaction %s has no details", r.ID)
	}
	w := recordJSON{
		ID:          r.ID,
		UserID:      r.UserID,
		Type:        r.Details.Kind(),
		Description: r.Description,
		Amount:      r.Amount,
		Status:      r.Status,
		Timestamp:   wireTime{r.Timestamp},
	}
	switch d := r.Details.(type) {
	case TransferDetails:
		w.Recipient = d.CounterpartyName
		w.RecipientCounterpartyID = d.CounterpartyID
	case DepositDetails:
		w.Method = d.Method
	}
	return json.Marshal(w)
}

func (r *TransactionRecord) UnmarshalJSON(data []byte) error {
	var w recordJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	counterpartyID := w.RecipientCounterpartyID
	if counterpartyID == "" {
		counterpartyID = w.RecipientEmail
	}
	details, err := NewDetails(w.Type, counterpartyID, w.Recipient, w.Method)
	if err != nil {
		return err
	}
	ts := w.Timestamp.Time
	if ts.IsZero() && w.Date != "" {
		clock := w.Time
		if clock == "" {
			clock = "00:00:00"
		}
		if parsed, perr := time.Parse(legacyDateTimeLayout, w.Date+" "+clock); perr == nil {
			ts = parsed
		}
	}
	*r = TransactionRecord{
		ID:          w.ID,
		UserID:      w.UserID,
		Details:     details,
		Description: w.Description,
		Amount:      w.Amount,
		Status:      w.Status,
		Timestamp:   ts,
	}
	return nil
}

// NewDetails rebuilds the variant from flat storage columns.
func NewDetails(kind TransactionKind, counterpartyID, counterpartyName string, method DepositMethod) (Details, error) {
	switch kind {
	case KindTransfer:
		return TransferDetails{CounterpartyID: counterpartyID, CounterpartyName: counterpartyName}, nil
	case KindDeposit:
		return DepositDetails{Method: method}, nil
	case KindWithdrawal, KindPayment, KindSalary, KindFee:
		return Movement(kind), nil
	}
	return nil, fmt.Errorf("unknown transaction type %q", kind)
}

// TransferIntent is a requested transfer before it is committed. The recipient
// is named by RecipientUserID or, when that is empty, by RecipientIdentifier
// (email or username).
type TransferIntent struct {
	SenderUserID        string
	RecipientUserID     string
	RecipientIdentifier string
	Amount          decimal.Decimal
	Concept         string
}

// TransferResult holds both legs of a committed transfer.
type TransferResult struct {
	Code   string            `json:"transaction_code"`
	Debit  TransactionRecord `json:"debit"`
	Credit TransactionRecord `json:"credit"`
}
