package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// BalanceCache guarda a última leitura de saldos por ativo com TTL curto.
// Só o GET de saldos passa por aqui; mutações sempre batem no ledger.
type BalanceCache struct{ R *redis.Client }

func New(r *redis.Client) *BalanceCache { return &BalanceCache{R: r} }

func keyBalances(asset string) string { return "ledger:balances:" + asset }

func (c *BalanceCache) Get(ctx context.Context, asset string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyBalances(asset)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *BalanceCache) Set(ctx context.Context, asset string, v any, ttl time.Duration) error {
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, keyBalances(asset), b, ttl).Err()
}
