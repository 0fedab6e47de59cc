package privacy

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookwell/insights/internal/domain"
)

// RedisLedger is a Ledger shared across engine instances. The
// increment-if-under-cap is a single Lua script so concurrent spenders on the
// same (tenant, category) key cannot both pass the cap.
type RedisLedger struct {
	client *redis.Client
	cap    float64
}

// NewRedisLedger creates a Redis-backed ledger with the given epsilon cap.
func NewRedisLedger(client *redis.Client, cap float64) *RedisLedger {
	return &RedisLedger{client: client, cap: cap}
}

func budgetKey(tenantID string, category domain.ConsentCategory) string {
	return fmt.Sprintf("budget:%s:%s", tenantID, category)
}

// spendScript returns the new consumption on success, -1 when the spend
// would exceed the cap.
var spendScript = redis.NewScript(`
	local current = tonumber(redis.call("get", KEYS[1]) or "0")
	local eps = tonumber(ARGV[1])
	local cap = tonumber(ARGV[2])
	if current + eps > cap then
		return "-1"
	end
	return redis.call("incrbyfloat", KEYS[1], eps)
`)

// Spend implements Ledger.
func (l *RedisLedger) Spend(ctx context.Context, tenantID string, category domain.ConsentCategory, epsilon float64) (float64, error) {
	res, err := spendScript.Run(ctx, l.client, []string{budgetKey(tenantID, category)},
		strconv.FormatFloat(epsilon, 'f', -1, 64),
		strconv.FormatFloat(l.cap, 'f', -1, 64)).Result()
	if err != nil {
		return 0, fmt.Errorf("budget spend: %w", err)
	}
	s, ok := res.(string)
	if !ok {
		return 0, fmt.Errorf("budget spend: unexpected reply %T", res)
	}
	consumed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("budget spend: parse reply: %w", err)
	}
	if consumed < 0 {
		entry, entryErr := l.Entry(ctx, tenantID, category)
		if entryErr != nil {
			return 0, ErrBudgetExhausted
		}
		return entry.Consumed, ErrBudgetExhausted
	}
	return consumed, nil
}

// Entry implements Ledger.
func (l *RedisLedger) Entry(ctx context.Context, tenantID string, category domain.ConsentCategory) (domain.BudgetEntry, error) {
	val, err := l.client.Get(ctx, budgetKey(tenantID, category)).Result()
	if err == redis.Nil {
		val = "0"
	} else if err != nil {
		return domain.BudgetEntry{}, fmt.Errorf("budget read: %w", err)
	}
	consumed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return domain.BudgetEntry{}, fmt.Errorf("budget read: parse %q: %w", val, err)
	}
	return domain.BudgetEntry{
		TenantID:  tenantID,
		Category:  category,
		Consumed:  consumed,
		Cap:       l.cap,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Reset implements Ledger.
func (l *RedisLedger) Reset(ctx context.Context, tenantID string, category domain.ConsentCategory) error {
	if err := l.client.Del(ctx, budgetKey(tenantID, category)).Err(); err != nil {
		return fmt.Errorf("budget reset: %w", err)
	}
	return nil
}
