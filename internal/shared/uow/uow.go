package uow

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// UnitOfWork reconstrói a semântica tudo-ou-nada de uma transição com várias
// pernas (ex: coletar stake -> reservar -> persistir -> pedir randomness).
// Cada Step registra um undo; se um passo falha, os anteriores são desfeitos
// em ordem reversa.
type UnitOfWork struct {
	log   *zap.Logger
	undos []func(ctx context.Context) error
}

func New(log *zap.Logger) *UnitOfWork {
	return &UnitOfWork{log: log}
}

// Step executa do; em caso de sucesso empilha undo (pode ser nil para passos
// sem compensação) e retorna nil. Em caso de falha, desfaz tudo que já foi
// feito e devolve o erro original.
func (u *UnitOfWork) Step(ctx context.Context, name string, do func() error, undo func(ctx context.Context) error) error {
	if err := do(); err != nil {
		u.rollback(ctx)
		return fmt.Errorf("%s: %w", name, err)
	}
	if undo != nil {
		u.undos = append(u.undos, undo)
	}
	return nil
}

// rollback desfaz os passos concluídos em ordem reversa. Falhas de undo são
// logadas e não interrompem os demais — compensação é best-effort.
func (u *UnitOfWork) rollback(ctx context.Context) {
	for i := len(u.undos) - 1; i >= 0; i-- {
		if err := u.undos[i](ctx); err != nil && u.log != nil {
			u.log.Error("uow undo failed", zap.Int("step", i), zap.Error(err))
		}
	}
	u.undos = nil
}
