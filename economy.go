package main

// applyResult describes the outcome of a ledger mutation.
type applyResult int

const (
	// ledgerApplied means the balance was updated.
	ledgerApplied applyResult = iota
	// ledgerRejected means a purchase would have gone negative and was
	// refused; the balance is untouched.
	ledgerRejected
	// ledgerExhausted means a penalty drove the balance negative, which
	// ends the round.
	ledgerExhausted
)

// EconomyLedger tracks the shared money balance and failed-order strikes.
type EconomyLedger struct {
	Balance    int
	Strikes    int
	MaxStrikes int
}

// apply adjusts the balance by delta. Penalties are allowed to bankrupt the
// team; ordinary spending is rejected instead.
func (e *EconomyLedger) apply(delta int, penalty bool) applyResult {
	next := e.Balance + delta
	if next < 0 {
		if penalty {
			e.Balance = next
			return ledgerExhausted
		}
		return ledgerRejected
	}
	e.Balance = next
	return ledgerApplied
}

// strike records one failed order and reports whether the strike limit has
// been reached.
func (e *EconomyLedger) strike() bool {
	e.Strikes++
	return e.Strikes >= e.MaxStrikes
}
