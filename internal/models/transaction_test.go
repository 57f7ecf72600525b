package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionRecord_MarshalJSON(t *testing.T) {
	ts := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("transfer carries counterparty", func(t *testing.T) {
		rec := TransactionRecord{
			ID: "t1", UserID: "u1", Details: TransferDetails{CounterpartyID: "u2", CounterpartyName: "Maria Gonzalez"},
			Description: "Transfer to Maria Gonzalez", Amount: decimal.NewFromInt(-15500), Status: StatusCompleted, Timestamp: ts,
		}
		data, err := json.Marshal(rec)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"id":"t1","userId":"u1","type":"transfer","description":"Transfer to Maria Gonzalez",
			"amount":"-15500","status":"completed","timestamp":"2025-03-10T12:00:00Z",
			"recipient":"Maria Gonzalez","recipientCounterpartyId":"u2"
		}`, string(data))
	})

	t.Run("deposit carries method only", func(t *testing.T) {
		rec := TransactionRecord{
			ID: "t2", UserID: "u1", Details: DepositDetails{Method: MethodPayPal},
			Amount: decimal.NewFromInt(1000), Status: StatusCompleted, Timestamp: ts,
		}
		data, err := json.Marshal(rec)
		require.NoError(t, err)
		var flat map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &flat))
		assert.Equal(t, "paypal", flat["method"])
		assert.NotContains(t, flat, "recipient")
	})

	t.Run("missing details", func(t *testing.T) {
		_, err := json.Marshal(TransactionRecord{ID: "t3"})
		assert.Error(t, err)
	})
}

func TestTransactionRecord_UnmarshalJSON(t *testing.T) {
	var rec TransactionRecord
	err := json.Unmarshal([]byte(`{"id":"t1","userId":"u1","type":"salary","description":"Salary","amount":450000,"status":"completed","timestamp":"2025-01-01T09:00:00Z"}`), &rec)
	require.NoError(t, err)
	assert.Equal(t, KindSalary, rec.Kind())
	assert.Equal(t, MovementDetails{Type: KindSalary}, rec.Details)
	_, isTransfer := rec.Counterparty()
	assert.False(t, isTransfer)

	err = json.Unmarshal([]byte(`{"id":"t1","type":"refund"}`), &rec)
	assert.Error(t, err)
}

func TestTransactionRecord_UnmarshalTimestamps(t *testing.T) {
	cases := []struct {
		name string
		json string
		want time.Time
	}{
		{"rfc3339", `{"id":"t1","userId":"u1","type":"fee","amount":-10,"status":"completed","timestamp":"2025-01-01T09:00:00Z"}`, time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)},
		{"iso with millis", `{"id":"t1","userId":"u1","type":"fee","amount":-10,"status":"completed","timestamp":"2025-01-01T09:00:00.250Z"}`, time.Date(2025, 1, 1, 9, 0, 0, 250000000, time.UTC)},
		{"epoch millis", `{"id":"t1","userId":"u1","type":"fee","amount":-10,"status":"completed","timestamp":1766308500000}`, time.Date(2025, 12, 21, 9, 15, 0, 0, time.UTC)},
		{"date and time only", `{"id":"t1","userId":"u1","type":"fee","amount":-10,"status":"completed","date":"2025-12-17","time":"00:01:00"}`, time.Date(2025, 12, 17, 0, 1, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rec TransactionRecord
			require.NoError(t, json.Unmarshal([]byte(tc.json), &rec))
			assert.True(t, tc.want.Equal(rec.Timestamp), "got %s", rec.Timestamp)
		})
	}

	t.Run("garbage timestamp", func(t *testing.T) {
		var rec TransactionRecord
		err := json.Unmarshal([]byte(`{"id":"t1","type":"fee","timestamp":"yesterday"}`), &rec)
		assert.Error(t, err)
	})
}

func TestTransactionRecord_RecipientEmailFallback(t *testing.T) {
	var rec TransactionRecord
	require.NoError(t, json.Unmarshal([]byte(`{"id":"tx_002","userId":"juan.perez@email.com","type":"transfer","recipient":"María González","recipientEmail":"maria.gonzalez@email.com","amount":-15500.00,"status":"completed","timestamp":1766308500000}`), &rec))
	assert.Equal(t, TransferDetails{CounterpartyID: "maria.gonzalez@email.com", CounterpartyName: "María González"}, rec.Details)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "recipientEmail")
	assert.Contains(t, string(data), `"recipientCounterpartyId":"maria.gonzalez@email.com"`)
}

func TestKindAndStatus(t *testing.T) {
	assert.True(t, KindFee.Valid())
	assert.False(t, TransactionKind("refund").Valid())
	assert.True(t, StatusPending.Valid())
	assert.False(t, StatusType("reversed").Valid())
	assert.Equal(t, TransactionKind(""), TransactionRecord{}.Kind())
}
