package events

// RandomRequested é emitido quando o router encaminha um pedido ao oráculo.
type RandomRequested struct {
	RequestID string `json:"request_id"`
	Requester string `json:"requester"`
	RoundID   string `json:"round_id"`
	WordCount int    `json:"word_count"`
	TsUnixMs  int64  `json:"ts_unix_ms"`
}

// RandomFulfilled é emitido após o resultado do oráculo ser persistido.
// Delivered indica se a notificação ao requester foi entregue nessa tentativa;
// consumidores (settlement-worker) usam o flag para disparar retries.
type RandomFulfilled struct {
	RequestID   string `json:"request_id"`
	Requester   string `json:"requester"`
	RoundID     string `json:"round_id"`
	RandomValue uint64 `json:"random_value"`
	Delivered   bool   `json:"delivered"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}

// DeliveryFailed registra uma falha de notificação (entrega fica pendente).
type DeliveryFailed struct {
	RequestID string `json:"request_id"`
	Requester string `json:"requester"`
	RoundID   string `json:"round_id"`
	Reason    string `json:"reason"`
	Attempt   int    `json:"attempt"`
	TsUnixMs  int64  `json:"ts_unix_ms"`
}
