package randomness

import "time"

// RequestConfig é a configuração fixa repassada ao oráculo em todo pedido.
type RequestConfig struct {
	ConfirmationDepth int    `json:"confirmation_depth"`
	CallbackGasLimit  int64  `json:"callback_gas_limit"`
	WordCount         int    `json:"word_count"`
	PaymentMode       string `json:"payment_mode"` // "subscription" | "direct"
	CallbackURL       string `json:"callback_url"`
	APIKey            string `json:"-"`
}

// RequestContext mapeia um pedido em aberto para quem o originou.
// Fulfilled é setado exatamente uma vez pelo callback do oráculo;
// Delivered no máximo uma vez, por uma notificação bem-sucedida.
type RequestContext struct {
	RequestID   string
	Requester   string // identidade do round que pediu ("" = pedido desconhecido)
	RoundID     string
	WordCount   int
	Fulfilled   bool
	Delivered   bool
	RandomValue uint64
	Attempts    int    // tentativas de entrega
	LastError   string // motivo da última falha de entrega
	CreatedAt   time.Time
	FulfilledAt time.Time
}

// NotifyResult é o desfecho explícito de uma tentativa de notificação.
// Falha de entrega é dado, nunca erro propagado para o fulfillment.
type NotifyResult struct {
	Delivered bool
	Reason    string
}
