// Package analytics builds the dashboard summary: catalog, board and ledger
// aggregates plus the recent activity feed.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stanfordssi/sats-inventory/internal/application/dto"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
)

const (
	recentTransactions = 5
	recentBuilds       = 3
	activityFeedSize   = 5
)

// DashboardUseCase aggregates the numbers shown on the dashboard landing page.
//
// Data comes from read-only queries; nothing here takes locks or opens a transaction.
type DashboardUseCase struct {
	dashRepo repository.DashboardRepository
	txs      repository.TransactionRepository
	builds   repository.BuildRepository
	now      func() time.Time
}

// NewDashboardUseCase builds the use case.
func NewDashboardUseCase(dashRepo repository.DashboardRepository, txs repository.TransactionRepository, builds repository.BuildRepository) *DashboardUseCase {
	return &DashboardUseCase{dashRepo: dashRepo, txs: txs, builds: builds, now: time.Now}
}

// GetStats builds the DashboardStatsDTO. User totals are only reported to admins.
//
// Six queries run in parallel:
//  1. PartCounts(week)          → catalog size, low stock, stock value
//  2. UserCounts(week)          → members (admin only)
//  3. BoardCounts               → active/ready boards, build count
//  4. TransactionCounts(weeks)  → week-over-week ledger activity
//  5. Recent transactions (5)   ┐
//  6. Recent builds (3)         ┘ merged into the activity feed
func (uc *DashboardUseCase) GetStats(ctx context.Context, role string) (*dto.DashboardStatsDTO, error) {
	now := uc.now().UTC()
	weekStart := now.Add(-7 * 24 * time.Hour)
	prevWeekStart := weekStart.Add(-7 * 24 * time.Hour)

	type partsResult struct {
		c   repository.PartCounts
		err error
	}
	type usersResult struct {
		total, recent int
		err           error
	}
	type boardsResult struct {
		c   repository.BoardCounts
		err error
	}
	type txCountResult struct {
		cur, prev int
		err       error
	}
	type txResult struct {
		rows []entity.TransactionView
		err  error
	}
	type buildResult struct {
		rows []entity.BuildView
		err  error
	}

	partsCh := make(chan partsResult, 1)
	usersCh := make(chan usersResult, 1)
	boardsCh := make(chan boardsResult, 1)
	countCh := make(chan txCountResult, 1)
	txCh := make(chan txResult, 1)
	buildCh := make(chan buildResult, 1)

	go func() {
		c, err := uc.dashRepo.PartCounts(ctx, weekStart)
		partsCh <- partsResult{c, err}
	}()
	go func() {
		if role != entity.RoleAdmin {
			usersCh <- usersResult{}
			return
		}
		total, recent, err := uc.dashRepo.UserCounts(ctx, weekStart)
		usersCh <- usersResult{total, recent, err}
	}()
	go func() {
		c, err := uc.dashRepo.BoardCounts(ctx)
		boardsCh <- boardsResult{c, err}
	}()
	go func() {
		cur, prev, err := uc.dashRepo.TransactionCounts(ctx, weekStart, prevWeekStart)
		countCh <- txCountResult{cur, prev, err}
	}()
	go func() {
		rows, err := uc.txs.Recent(ctx, recentTransactions)
		txCh <- txResult{rows, err}
	}()
	go func() {
		rows, err := uc.builds.Recent(ctx, recentBuilds)
		buildCh <- buildResult{rows, err}
	}()

	parts := <-partsCh
	users := <-usersCh
	boards := <-boardsCh
	counts := <-countCh
	txs := <-txCh
	builds := <-buildCh

	if parts.err != nil {
		return nil, fmt.Errorf("dashboard: part counts: %w", parts.err)
	}
	if users.err != nil {
		return nil, fmt.Errorf("dashboard: user counts: %w", users.err)
	}
	if boards.err != nil {
		return nil, fmt.Errorf("dashboard: board counts: %w", boards.err)
	}
	if counts.err != nil {
		return nil, fmt.Errorf("dashboard: transaction counts: %w", counts.err)
	}
	if txs.err != nil {
		return nil, fmt.Errorf("dashboard: recent transactions: %w", txs.err)
	}
	if builds.err != nil {
		return nil, fmt.Errorf("dashboard: recent builds: %w", builds.err)
	}

	out := &dto.DashboardStatsDTO{
		TotalParts:           parts.c.Total,
		LowStockParts:        parts.c.LowStock,
		NewPartsWeek:         parts.c.NewSince,
		StockValue:           parts.c.StockValue.Round(2),
		ActiveBoards:         boards.c.Active,
		ReadyBoards:          boards.c.Ready,
		TotalBuilds:          boards.c.Builds,
		TransactionsWeek:     counts.cur,
		TransactionsLastWeek: counts.prev,
		TransactionGrowthPct: GrowthPct(counts.cur, counts.prev),
		RecentActivity:       mergeActivity(txs.rows, builds.rows),
	}
	if role == entity.RoleAdmin {
		out.TotalUsers = &users.total
		out.NewUsersWeek = &users.recent
	}
	return out, nil
}

// GrowthPct is the change from prev to cur in percent, rounded to a whole number.
// With no activity in the previous period the growth is reported as 0.
func GrowthPct(cur, prev int) decimal.Decimal {
	if prev <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(cur - prev)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(prev))).
		Round(0)
}

// mergeActivity interleaves transactions and builds newest first.
func mergeActivity(txs []entity.TransactionView, builds []entity.BuildView) []dto.ActivityDTO {
	feed := make([]dto.ActivityDTO, 0, len(txs)+len(builds))
	for _, t := range txs {
		if t.Timestamp.IsZero() {
			continue
		}
		feed = append(feed, dto.ActivityDTO{
			Kind:      "transaction",
			ID:        t.ID,
			Title:     t.PartNumber,
			UserName:  displayName(t.UserName),
			Type:      t.Type,
			Quantity:  t.Quantity,
			Timestamp: t.Timestamp,
		})
	}
	for _, b := range builds {
		if b.BuiltAt.IsZero() {
			continue
		}
		feed = append(feed, dto.ActivityDTO{
			Kind:      "build",
			ID:        b.ID,
			Title:     b.BoardName + " v" + b.BoardVersion,
			UserName:  displayName(b.BuilderName),
			Type:      "build",
			Quantity:  b.QuantityBuilt,
			Timestamp: b.BuiltAt,
		})
	}
	sort.SliceStable(feed, func(i, j int) bool { return feed[i].Timestamp.After(feed[j].Timestamp) })
	if len(feed) > activityFeedSize {
		feed = feed[:activityFeedSize]
	}
	return feed
}

func displayName(name string) string {
	if name == "" {
		return "Unknown"
	}
	return name
}
