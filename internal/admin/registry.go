package admin

import (
	"fmt"
	"sync"

	"github.com/radieske/vrf-casino-platform-poc/internal/shared/apperr"
)

// Registry guarda o estado administrativo dos componentes: dono atual,
// transferência de propriedade em duas fases e o gate de pausa que bloqueia
// toda entrada mutante.
type Registry struct {
	mu           sync.RWMutex
	owner        string
	pendingOwner string
	paused       bool
}

// NewRegistry cria o registro com o dono inicial (vindo da configuração).
func NewRegistry(owner string) *Registry {
	return &Registry{owner: owner}
}

// Owner retorna o dono atual.
func (r *Registry) Owner() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

// Paused indica se as entradas mutantes estão bloqueadas.
func (r *Registry) Paused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

// RequireOwner valida que caller é o dono atual.
func (r *Registry) RequireOwner(caller string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if caller == "" || caller != r.owner {
		return fmt.Errorf("%w: caller %q is not owner", apperr.ErrUnauthorized, caller)
	}
	return nil
}

// RequireActive falha fechado quando o componente está pausado.
func (r *Registry) RequireActive() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.paused {
		return apperr.ErrPaused
	}
	return nil
}

// SetPaused liga/desliga o gate de pausa. Só o dono pode.
func (r *Registry) SetPaused(caller string, paused bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return fmt.Errorf("%w: caller %q is not owner", apperr.ErrUnauthorized, caller)
	}
	r.paused = paused
	return nil
}

// TransferOwnership inicia a transferência em duas fases: o dono indica o
// novo dono, que só assume após AcceptOwnership.
func (r *Registry) TransferOwnership(caller, newOwner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return fmt.Errorf("%w: caller %q is not owner", apperr.ErrUnauthorized, caller)
	}
	if newOwner == "" {
		return fmt.Errorf("%w: new owner must not be empty", apperr.ErrInvalidInput)
	}
	r.pendingOwner = newOwner
	return nil
}

// AcceptOwnership conclui a transferência; só o dono pendente pode aceitar.
func (r *Registry) AcceptOwnership(caller string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pendingOwner == "" || caller != r.pendingOwner {
		return fmt.Errorf("%w: caller %q is not pending owner", apperr.ErrUnauthorized, caller)
	}
	r.owner = r.pendingOwner
	r.pendingOwner = ""
	return nil
}
