package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_signal_desk/internal/domain"
)

type repository interface {
	domain.CooldownRepository
	domain.LedgerRepository
	domain.DecisionRepository
}

// runRepositoryTests exercises the behavior every backend must share.
func runRepositoryTests(t *testing.T, repo repository) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("cooldown missing key", func(t *testing.T) {
		e, err := repo.GetCooldown(ctx, "NOPE")
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("cooldown upsert keeps one row", func(t *testing.T) {
		require.NoError(t, repo.UpsertCooldown(ctx, domain.CooldownEntry{Key: "BTCUSDT", LastNotifiedAt: base}))
		require.NoError(t, repo.UpsertCooldown(ctx, domain.CooldownEntry{Key: "BTCUSDT", LastNotifiedAt: base.Add(time.Hour)}))

		e, err := repo.GetCooldown(ctx, "BTCUSDT")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.True(t, e.LastNotifiedAt.Equal(base.Add(time.Hour)), "got %v", e.LastNotifiedAt)
	})

	t.Run("cooldown prune", func(t *testing.T) {
		require.NoError(t, repo.UpsertCooldown(ctx, domain.CooldownEntry{Key: "OLDUSDT", LastNotifiedAt: base.Add(-48 * time.Hour)}))

		n, err := repo.PruneCooldowns(ctx, base.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		e, err := repo.GetCooldown(ctx, "OLDUSDT")
		require.NoError(t, err)
		assert.Nil(t, e)
		e, err = repo.GetCooldown(ctx, "BTCUSDT")
		require.NoError(t, err)
		assert.NotNil(t, e)
	})

	t.Run("positions", func(t *testing.T) {
		pos := domain.Position{
			Symbol:     "ETHUSDT",
			Side:       domain.SideShort,
			EntryPrice: 50,
			Amount:     2,
			TakeProfit: 48,
			StopLoss:   51,
			Leverage:   3,
			OpenedAt:   base,
		}
		require.NoError(t, repo.SavePosition(ctx, pos))
		require.NoError(t, repo.SavePosition(ctx, domain.Position{
			Symbol: "ADAUSDT", Side: domain.SideLong, EntryPrice: 1, Amount: 10, Leverage: 1, OpenedAt: base,
		}))

		pos.Amount = 1
		pos.PartialTaken = true
		pos.StopLoss = 45.1
		require.NoError(t, repo.SavePosition(ctx, pos))

		positions, err := repo.ListPositions(ctx)
		require.NoError(t, err)
		require.Len(t, positions, 2)
		assert.Equal(t, "ADAUSDT", positions[0].Symbol)
		got := positions[1]
		assert.Equal(t, domain.SideShort, got.Side)
		assert.Equal(t, 1.0, got.Amount)
		assert.Equal(t, 45.1, got.StopLoss)
		assert.Equal(t, 3, got.Leverage)
		assert.True(t, got.PartialTaken)
		assert.True(t, got.OpenedAt.Equal(base))

		require.NoError(t, repo.DeletePosition(ctx, "ADAUSDT"))
		require.NoError(t, repo.DeletePosition(ctx, "ETHUSDT"))
		positions, err = repo.ListPositions(ctx)
		require.NoError(t, err)
		assert.Empty(t, positions)
	})

	t.Run("trades newest first", func(t *testing.T) {
		for i, id := range []string{"01A", "01B", "01C"} {
			require.NoError(t, repo.SaveTrade(ctx, domain.TradeRecord{
				ID:           id,
				Symbol:       "BTCUSDT",
				Side:         domain.SideLong,
				EntryPrice:   100,
				ExitPrice:    110,
				AmountClosed: 1,
				PnL:          float64(10 * (i + 1)),
				Reason:       "take profit",
				ClosedAt:     base.Add(time.Duration(i) * time.Minute),
			}))
		}

		trades, err := repo.ListTrades(ctx, 2)
		require.NoError(t, err)
		require.Len(t, trades, 2)
		assert.Equal(t, "01C", trades[0].ID)
		assert.Equal(t, "01B", trades[1].ID)
		assert.Equal(t, domain.SideLong, trades[0].Side)

		all, err := repo.ListTrades(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("decisions", func(t *testing.T) {
		require.NoError(t, repo.SaveDecision(ctx, domain.Decision{
			ID: "D1", Timestamp: base, Symbol: "BTCUSDT", SignalKind: domain.SignalLong, Outcome: domain.OutcomeEnter, Reason: "confidence 0.80",
		}))
		require.NoError(t, repo.SaveDecision(ctx, domain.Decision{
			ID: "D2", Timestamp: base.Add(time.Second), Symbol: "SOLUSDT", SignalKind: domain.SignalSpike, Outcome: domain.OutcomePass, Reason: "low confidence",
		}))

		decisions, err := repo.ListDecisions(ctx, 10)
		require.NoError(t, err)
		require.Len(t, decisions, 2)
		assert.Equal(t, "D2", decisions[0].ID)
		assert.Equal(t, domain.SignalSpike, decisions[0].SignalKind)
		assert.Equal(t, domain.OutcomePass, decisions[0].Outcome)
		assert.Equal(t, "confidence 0.80", decisions[1].Reason)
	})
}

func TestMemoryStore(t *testing.T) {
	runRepositoryTests(t, NewMemoryStore())
}
