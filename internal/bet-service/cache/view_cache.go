package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ViewCache guarda a projeção JSON de cada aposta no Redis.
// É só leitura acelerada: transições sempre leem o store.
//
// Cada aposta tem uma geração (bet:view:gen:<id>) incrementada a cada Invalidate.
// Fill só grava se a geração ainda for a lida antes da consulta ao store, então
// uma leitura lenta nunca recoloca no cache uma projeção anterior a uma escrita.
type ViewCache struct {
	R   *redis.Client
	TTL time.Duration
}

func New(r *redis.Client, ttl time.Duration) *ViewCache { return &ViewCache{R: r, TTL: ttl} }

// genTTL mantém a geração bem mais tempo que a projeção
const genTTL = 24 * time.Hour

func keyBet(betID string) string { return "bet:view:" + betID }

func keyGen(betID string) string { return "bet:view:gen:" + betID }

// fillScript: SET da projeção somente se a geração atual for ARGV[1] (ausente = 0)
var fillScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[1])
if not gen then gen = '0' end
if gen ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Get preenche dst com a projeção; false quando não há entrada
func (c *ViewCache) Get(ctx context.Context, betID string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyBet(betID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

// Generation retorna a geração atual da aposta (0 quando nunca invalidada)
func (c *ViewCache) Generation(ctx context.Context, betID string) (int64, error) {
	n, err := c.R.Get(ctx, keyGen(betID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Fill grava a projeção se nenhuma escrita aconteceu desde a geração gen.
// Retorna false quando a gravação foi descartada.
func (c *ViewCache) Fill(ctx context.Context, betID string, gen int64, v any) (bool, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	n, err := fillScript.Run(ctx, c.R, []string{keyGen(betID), keyBet(betID)},
		gen, b, c.TTL.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Invalidate avança a geração e remove a projeção na mesma transação
func (c *ViewCache) Invalidate(ctx context.Context, betID string) error {
	_, err := c.R.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, keyGen(betID))
		p.Expire(ctx, keyGen(betID), genTTL)
		p.Del(ctx, keyBet(betID))
		return nil
	})
	return err
}
