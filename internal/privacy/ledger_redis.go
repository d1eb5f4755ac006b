package privacy

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"devcred/pkg/domain"
)

const redisBudgetKeyPrefix = "devcred:budget:"

// debitScript checks and commits in a single server-side step. Lua numbers are
// truncated to integers in replies, so balances travel as strings.
var debitScript = redis.NewScript(`
local spent = tonumber(redis.call('GET', KEYS[1]) or '0')
local eps = tonumber(ARGV[1])
local budget = tonumber(ARGV[2])
local tolerance = tonumber(ARGV[3])
if spent + eps > budget + tolerance then
  return {0, tostring(spent)}
end
local total = redis.call('INCRBYFLOAT', KEYS[1], ARGV[1])
return {1, total}
`)

var creditScript = redis.NewScript(`
local spent = tonumber(redis.call('GET', KEYS[1]) or '0')
local remaining = spent - tonumber(ARGV[1])
if remaining < 0 then remaining = 0 end
redis.call('SET', KEYS[1], tostring(remaining))
return tostring(remaining)
`)

// RedisLedger shares balances across replicas. Each debit runs as one Lua
// script, so the check-then-commit is atomic per subject key.
type RedisLedger struct {
	client *redis.Client
	budget float64
}

// NewRedisLedger constructs a Redis-backed ledger.
// Usage: pass a connected client (see internal/platform/redis).
func NewRedisLedger(client *redis.Client, budget float64) *RedisLedger {
	return &RedisLedger{client: client, budget: budget}
}

// Debit consumes epsilon from the subject's budget.
//
// Side effects: runs EVALSHA (falling back to EVAL) against the subject key.
//
// Errors: CodeBudgetExceeded when the debit would exceed the budget; wraps
// Redis failures.
func (l *RedisLedger) Debit(ctx context.Context, subject domain.SubjectID, epsilon float64) (Balance, error) {
	if err := checkAmount(epsilon); err != nil {
		return Balance{}, err
	}
	res, err := debitScript.Run(ctx, l.client, []string{budgetKey(subject)},
		formatFloat(epsilon), formatFloat(l.budget), formatFloat(budgetTolerance)).Slice()
	if err != nil {
		return Balance{}, fmt.Errorf("debit privacy budget: %w", err)
	}
	if len(res) != 2 {
		return Balance{}, fmt.Errorf("debit privacy budget: unexpected reply %v", res)
	}
	spent, err := parseReplyFloat(res[1])
	if err != nil {
		return Balance{}, fmt.Errorf("debit privacy budget: %w", err)
	}
	bal := Balance{Subject: subject, Spent: spent, Budget: l.budget}
	if admitted, _ := res[0].(int64); admitted != 1 {
		return bal, budgetExceeded(bal, epsilon)
	}
	return bal, nil
}

// Credit returns epsilon to the subject, never dropping below zero.
func (l *RedisLedger) Credit(ctx context.Context, subject domain.SubjectID, epsilon float64) (Balance, error) {
	if err := checkAmount(epsilon); err != nil {
		return Balance{}, err
	}
	raw, err := creditScript.Run(ctx, l.client, []string{budgetKey(subject)}, formatFloat(epsilon)).Text()
	if err != nil {
		return Balance{}, fmt.Errorf("credit privacy budget: %w", err)
	}
	spent, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Balance{}, fmt.Errorf("credit privacy budget: %w", err)
	}
	return Balance{Subject: subject, Spent: spent, Budget: l.budget}, nil
}

// Balance reads the subject's current spend. Missing keys mean nothing spent.
func (l *RedisLedger) Balance(ctx context.Context, subject domain.SubjectID) (Balance, error) {
	spent, err := l.client.Get(ctx, budgetKey(subject)).Float64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Balance{}, fmt.Errorf("read privacy budget: %w", err)
	}
	return Balance{Subject: subject, Spent: spent, Budget: l.budget}, nil
}

func budgetKey(subject domain.SubjectID) string {
	return redisBudgetKeyPrefix + subject.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func parseReplyFloat(v any) (float64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseFloat(t, 64)
	case int64:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("unexpected balance type %T", v)
	}
}
