package apperr

import "errors"

// Taxonomia de erros compartilhada pelos componentes do casino.
// Toda falha aborta a operação corrente sem efeito parcial; o chamador
// recebe o sentinel embrulhado com os valores ofensores (estado atual vs
// exigido, valores fora de faixa etc).
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidState          = errors.New("invalid state")
	ErrIdentityMismatch      = errors.New("identity mismatch")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrReservationUnderflow  = errors.New("reservation underflow")
	ErrTransferFailure       = errors.New("transfer failure")

	// Específicos dos rounds
	ErrCommitMismatch       = errors.New("commit mismatch")
	ErrRefundAlreadyClaimed = errors.New("refund already claimed")
	ErrUnknownRequest       = errors.New("unknown request")
	ErrAlreadyFulfilled     = errors.New("already fulfilled")
	ErrPaused               = errors.New("component paused")
)
