// Package policy 用 CEL 表达式描述按卖家可调的时间窗口策略。
//
// 表达式可以访问 seller_id(string)、item_count(int)、total(int)，返回窗口秒数。
// 返回值 <= 0 或求值失败时使用默认窗口，例如：
//
//	seller_id in ['s-vip', 's-gold'] ? 600 : 0
package policy

import (
	"context"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"marketplace/internal/pkg/logger"
)

// ExpiryPolicy 计算订单预留窗口与评价征集窗口
type ExpiryPolicy struct {
	reservationDefault time.Duration
	reviewDefault      time.Duration
	reservation        cel.Program
	review             cel.Program
}

// NewExpiryPolicy 编译两条表达式，空表达式表示总是使用默认值
func NewExpiryPolicy(reservationDefault, reviewDefault time.Duration, reservationExpr, reviewExpr string) (*ExpiryPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("seller_id", cel.StringType),
		cel.Variable("item_count", cel.IntType),
		cel.Variable("total", cel.IntType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}

	p := &ExpiryPolicy{reservationDefault: reservationDefault, reviewDefault: reviewDefault}
	if p.reservation, err = compile(env, reservationExpr); err != nil {
		return nil, errors.Wrap(err, "reservation policy")
	}
	if p.review, err = compile(env, reviewExpr); err != nil {
		return nil, errors.Wrap(err, "review policy")
	}
	return p, nil
}

func compile(env *cel.Env, expr string) (cel.Program, error) {
	if expr == "" {
		return nil, nil
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if out := ast.OutputType(); !out.IsExactType(cel.IntType) && !out.IsExactType(cel.DynType) {
		return nil, errors.Errorf("expression must return int seconds, got %s", out)
	}
	return env.Program(ast)
}

// ReservationWindow 返回结账预留窗口
func (p *ExpiryPolicy) ReservationWindow(ctx context.Context, sellerID string, itemCount int, total int64) time.Duration {
	return p.eval(ctx, p.reservation, p.reservationDefault, sellerID, itemCount, total)
}

// ReviewWindow 返回评价征集窗口
func (p *ExpiryPolicy) ReviewWindow(ctx context.Context, sellerID string, itemCount int, total int64) time.Duration {
	return p.eval(ctx, p.review, p.reviewDefault, sellerID, itemCount, total)
}

func (p *ExpiryPolicy) eval(ctx context.Context, prg cel.Program, fallback time.Duration, sellerID string, itemCount int, total int64) time.Duration {
	if prg == nil {
		return fallback
	}
	out, _, err := prg.Eval(map[string]any{
		"seller_id":  sellerID,
		"item_count": int64(itemCount),
		"total":      total,
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("seller_id", sellerID).Msg("Expiry policy evaluation failed, using default window")
		return fallback
	}
	secs, ok := out.Value().(int64)
	if !ok || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
