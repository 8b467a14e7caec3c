package analytics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanfordssi/sats-inventory/internal/application/analytics"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
	"github.com/stanfordssi/sats-inventory/internal/testutil/memstore"
)

func seedDashboard(t *testing.T) *memstore.Store {
	t.Helper()
	now := time.Now()
	s := memstore.New()
	s.AddUser(entity.User{ID: "u1", Name: "Ada", Role: entity.RoleAdmin, CreatedAt: now.Add(-30 * 24 * time.Hour)})
	s.AddUser(entity.User{ID: "u2", Name: "Max", Role: entity.RoleMember, CreatedAt: now.Add(-time.Hour)})

	s.AddPart(entity.Part{ID: "pa", Number: "01-0001", Quantity: 10, MinQuantity: 2, UnitCost: decimal.RequireFromString("1.50"), CreatedAt: now.Add(-20 * 24 * time.Hour)})
	s.AddPart(entity.Part{ID: "pb", Number: "01-0002", Quantity: 1, MinQuantity: 5, UnitCost: decimal.RequireFromString("3.00")})

	s.AddBoard(entity.Board{ID: "b1", Name: "EPS", Version: "1.0", IsActive: true}, entity.BOMLine{PartID: "pa", QuantityRequired: 2})
	s.AddBoard(entity.Board{ID: "b2", Name: "OBC", Version: "2.1", IsActive: true}, entity.BOMLine{PartID: "pb", QuantityRequired: 2})
	s.AddBoard(entity.Board{ID: "b3", Name: "OLD", Version: "0.1", IsActive: false})

	// 4 transactions this week, 2 the week before
	for i, age := range []time.Duration{time.Minute, 2 * time.Hour, 3 * time.Hour, 4 * time.Hour, 8 * 24 * time.Hour, 9 * 24 * time.Hour} {
		s.AddTransaction(entity.Transaction{
			ID: "t" + string(rune('0'+i)), PartID: "pa", UserID: "u2", Type: entity.TxTypeCheckout, Quantity: -1, Timestamp: now.Add(-age),
		})
	}
	require.NoError(t, s.Repos().Builds.Create(context.Background(), &entity.BuildRecord{
		ID: "build-1", BoardID: "b1", BuiltBy: "u1", QuantityBuilt: 2, BuiltAt: now.Add(-30 * time.Minute),
	}))
	return s
}

func newDashboard(s *memstore.Store) *analytics.DashboardUseCase {
	return analytics.NewDashboardUseCase(s.Dashboard(), s.Repos().Transactions, s.Repos().Builds)
}

// ──────────────────────────────────────────────────────────────────────────────
// Stats
// ──────────────────────────────────────────────────────────────────────────────

func TestGetStats_Admin(t *testing.T) {
	s := seedDashboard(t)

	stats, err := newDashboard(s).GetStats(context.Background(), entity.RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalParts)
	assert.Equal(t, 1, stats.LowStockParts)
	assert.Equal(t, 1, stats.NewPartsWeek)
	assert.True(t, decimal.RequireFromString("18").Equal(stats.StockValue), "10×1.50 + 1×3.00")

	require.NotNil(t, stats.TotalUsers)
	assert.Equal(t, 2, *stats.TotalUsers)
	require.NotNil(t, stats.NewUsersWeek)
	assert.Equal(t, 1, *stats.NewUsersWeek)

	assert.Equal(t, 2, stats.ActiveBoards)
	assert.Equal(t, 1, stats.ReadyBoards, "OBC needs 2 of 01-0002, only 1 in stock")
	assert.Equal(t, 1, stats.TotalBuilds)

	assert.Equal(t, 4, stats.TransactionsWeek)
	assert.Equal(t, 2, stats.TransactionsLastWeek)
	assert.True(t, decimal.NewFromInt(100).Equal(stats.TransactionGrowthPct))
}

func TestGetStats_MemberDoesNotSeeUserTotals(t *testing.T) {
	s := seedDashboard(t)

	stats, err := newDashboard(s).GetStats(context.Background(), entity.RoleMember)

	require.NoError(t, err)
	assert.Nil(t, stats.TotalUsers)
	assert.Nil(t, stats.NewUsersWeek)
}

func TestGetStats_ActivityFeedMergesNewestFirst(t *testing.T) {
	s := seedDashboard(t)

	stats, err := newDashboard(s).GetStats(context.Background(), entity.RoleMember)
	require.NoError(t, err)

	require.Len(t, stats.RecentActivity, 5)
	assert.Equal(t, "t0", stats.RecentActivity[0].ID)
	assert.Equal(t, "build", stats.RecentActivity[1].Kind)
	assert.Equal(t, "EPS v1.0", stats.RecentActivity[1].Title)
	assert.Equal(t, "Ada", stats.RecentActivity[1].UserName)
	assert.Equal(t, 2, stats.RecentActivity[1].Quantity)
	for i := 1; i < len(stats.RecentActivity); i++ {
		assert.False(t, stats.RecentActivity[i].Timestamp.After(stats.RecentActivity[i-1].Timestamp))
	}
}

type failingDashboard struct{ repository.DashboardRepository }

func (failingDashboard) BoardCounts(context.Context) (repository.BoardCounts, error) {
	return repository.BoardCounts{}, errors.New("relation boards does not exist")
}

func TestGetStats_WrapsQueryErrors(t *testing.T) {
	s := seedDashboard(t)
	uc := analytics.NewDashboardUseCase(failingDashboard{s.Dashboard()}, s.Repos().Transactions, s.Repos().Builds)

	_, err := uc.GetStats(context.Background(), entity.RoleAdmin)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dashboard: board counts")
}

func TestGrowthPct(t *testing.T) {
	assert.True(t, decimal.Zero.Equal(analytics.GrowthPct(7, 0)), "no baseline")
	assert.True(t, decimal.NewFromInt(-50).Equal(analytics.GrowthPct(1, 2)))
	assert.True(t, decimal.NewFromInt(33).Equal(analytics.GrowthPct(4, 3)))
}
