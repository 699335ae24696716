package randomness

import "context"

// Store persiste os contextos de pedido do router.
type Store interface {
	GetRequest(ctx context.Context, requestID string) (RequestContext, bool, error)
	SaveRequest(ctx context.Context, rc RequestContext) error
}
