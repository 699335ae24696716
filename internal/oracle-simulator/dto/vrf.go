package dto

// VRFRequest é o corpo aceito em POST /vrf/request (espelha a configuração
// fixa enviada pelo router do casino).
type VRFRequest struct {
	ConfirmationDepth int    `json:"confirmation_depth"`
	CallbackGasLimit  int64  `json:"callback_gas_limit"`
	WordCount         int    `json:"word_count"`
	PaymentMode       string `json:"payment_mode"`
	CallbackURL       string `json:"callback_url"`
}

// VRFRequestResp devolve o id atribuído ao pedido.
type VRFRequestResp struct {
	RequestID string `json:"request_id"`
}

// VRFCallback é o corpo enviado no callback ao casino após o delay simulado.
type VRFCallback struct {
	RequestID string   `json:"request_id"`
	Words     []uint64 `json:"words"`
}

// VRFStatusUpdate é transmitido aos clientes WebSocket do simulador a cada
// mudança de estado de um pedido.
type VRFStatusUpdate struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"` // RECEIVED | DROPPED | FULFILLING | DELIVERED | CALLBACK_FAILED
	TsUnixMs  int64  `json:"ts_unix_ms"`
}
