package topics

const (
	// Ledger
	LedgerEntries = "ledger_entries"

	// Randomness
	RandomRequested = "random_requested"
	RandomFulfilled = "random_fulfilled"
	DeliveryFailed  = "delivery_failed"

	// Dice
	BetCommitted = "bet_committed"
	BetSettled   = "bet_settled"
	BetSlashed   = "bet_slashed"
	BetCancelled = "bet_cancelled"

	// Lottery
	DrawCreated    = "draw_created"
	TicketsSold    = "tickets_sold"
	DrawRolledOver = "draw_rolled_over"
	DrawFinalized  = "draw_finalized"
	DrawTimedOut   = "draw_timed_out"
	RefundClaimed  = "refund_claimed"

	// DLQ
	RetryDeliveryDLQ = "retry_delivery_dlq"
)
