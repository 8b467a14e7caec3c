package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/domain/ledger"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func tx(user, part, typ string, qty int, minutes int) entity.Transaction {
	return entity.Transaction{UserID: user, PartID: part, Type: typ, Quantity: qty, Timestamp: t0.Add(time.Duration(minutes) * time.Minute)}
}

func TestNetOutstanding_NetsCheckoutsAgainstReturns(t *testing.T) {
	txs := []entity.Transaction{
		tx("u1", "p1", entity.TxTypeCheckout, -5, 0),
		tx("u1", "p1", entity.TxTypeReturn, 2, 10),
		tx("u2", "p1", entity.TxTypeCheckout, -1, 5),
		tx("u2", "p1", entity.TxTypeReturn, 1, 6),
		tx("u1", "p2", entity.TxTypeConsumption, -3, 7),
		tx("u1", "p3", entity.TxTypeCheckout, -4, 20),
	}

	out := ledger.NetOutstanding(txs)

	require.Len(t, out, 2, "fully returned and non-checkout rows are dropped")
	assert.Equal(t, "p3", out[0].PartID, "most recent checkout first")
	assert.Equal(t, 4, out[0].Quantity)
	assert.Equal(t, "p1", out[1].PartID)
	assert.Equal(t, 3, out[1].Quantity)
}

func TestNetOutstanding_OrderIndependentInput(t *testing.T) {
	txs := []entity.Transaction{
		tx("u1", "p1", entity.TxTypeReturn, 2, 10),
		tx("u1", "p1", entity.TxTypeCheckout, -2, 0),
	}
	assert.Empty(t, ledger.NetOutstanding(txs))
	assert.Equal(t, 0, ledger.OutstandingFor(txs, "u1", "p1"))
}

func TestWeightedAverageCost(t *testing.T) {
	got := ledger.WeightedAverageCost(10, decimal.NewFromInt(2), 10, decimal.NewFromInt(4))
	assert.True(t, decimal.NewFromInt(3).Equal(got), "got %s", got)

	assert.True(t, decimal.Zero.Equal(ledger.WeightedAverageCost(0, decimal.Zero, 0, decimal.NewFromInt(5))))
	assert.True(t, decimal.NewFromInt(5).Equal(ledger.WeightedAverageCost(0, decimal.Zero, 3, decimal.NewFromInt(5))))
}
