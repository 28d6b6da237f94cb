/*
ledger.go - Token accounting

PURPOSE:
  The Ledger is the only code that moves a user's token balance during
  the slot lifecycle. It debits on creation, credits refunds on
  deletion, and computes the refund itself.

CRITICAL INVARIANTS:
  1. NON-NEGATIVE: A debit only happens when balance >= cost.
  2. BOUNDED: A credit never lifts the balance above MaxTokens.
  3. ATOMIC: Ledger methods take the Store to write through. Callers pass
     the transactional Store from WithTx so the balance change commits or
     rolls back together with the request it pays for.

INSUFFICIENT FUNDS:
  Not an error. Debit reports Debited=false and leaves the balance
  untouched; the caller records the request as invalid.

REFUND FORMULA:
  refund = max(0, unusedHours * costPerHour - penalty)

  Not started yet:     unused = total hours,           penalty = unused penalty
  Started, not ended:  unused = floor(hours(now, end)), penalty = partial-use penalty

RECHARGE:
  An admin sets an absolute balance. The range is checked by the API
  validator; the ledger applies whatever it is given.

SEE ALSO:
  - request.go: Calls Debit on create and Credit on delete
*/
package booking

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	MaxTokens int
	Now       Clock
}

func (l Ledger) stamp() time.Time {
	if l.Now == nil {
		return SystemClock()
	}
	return l.Now().UTC()
}

// DebitResult reports whether the cost was taken and the balance after.
type DebitResult struct {
	Debited   bool
	Remaining int
}

// Debit takes cost tokens from userID when the balance covers it.
func (l Ledger) Debit(ctx context.Context, s Store, userID UserID, cost int) (DebitResult, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return DebitResult{}, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return DebitResult{}, ErrUserNotFound
	}
	if cost < 0 {
		cost = 0
	}
	if user.Tokens < cost {
		return DebitResult{Debited: false, Remaining: user.Tokens}, nil
	}
	if cost > 0 {
		if err := s.AdjustTokens(ctx, userID, -cost, l.stamp()); err != nil {
			return DebitResult{}, fmt.Errorf("debit tokens: %w", err)
		}
	}
	return DebitResult{Debited: true, Remaining: user.Tokens - cost}, nil
}

// Credit adds amount to userID's balance, capped at MaxTokens, and
// returns the new balance.
func (l Ledger) Credit(ctx context.Context, s Store, userID UserID, amount int) (int, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return 0, ErrUserNotFound
	}
	if amount <= 0 {
		return user.Tokens, nil
	}
	target := user.Tokens + amount
	if l.MaxTokens > 0 && target > l.MaxTokens {
		target = l.MaxTokens
	}
	if delta := target - user.Tokens; delta > 0 {
		if err := s.AdjustTokens(ctx, userID, delta, l.stamp()); err != nil {
			return 0, fmt.Errorf("credit tokens: %w", err)
		}
	}
	return target, nil
}

// Refund computes max(0, unusedHours*costPerHour - penalty).
func Refund(unusedHours, costPerHour, penalty int) int {
	refund := unusedHours*costPerHour - penalty
	if refund < 0 {
		return 0
	}
	return refund
}

// =============================================================================
// RECHARGE
// =============================================================================

type RechargeResult struct {
	UserID    UserID
	OldAmount int
	NewAmount int
}

// RechargeUser sets userID's balance to newAmount.
func (s *Service) RechargeUser(ctx context.Context, userID UserID, newAmount int) (result RechargeResult, err error) {
	logger := s.opLogger(ctx, "RechargeUser", "user_id", userID)
	defer func() {
		logResult(ctx, logger, err, "tokens recharged", "old_amount", result.OldAmount, "new_amount", result.NewAmount)
	}()

	err = s.store.WithTx(ctx, func(tx Store) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user == nil {
			return ErrUserNotFound
		}
		if err := tx.SetTokens(ctx, userID, newAmount, s.Now()); err != nil {
			return fmt.Errorf("set tokens: %w", err)
		}
		result = RechargeResult{UserID: userID, OldAmount: user.Tokens, NewAmount: newAmount}
		return nil
	})
	if err != nil {
		return RechargeResult{}, err
	}
	return result, nil
}
