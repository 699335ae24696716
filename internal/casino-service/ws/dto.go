package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// RoundID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type    string `json:"type"`    // subscribe | unsubscribe | ping
	RoundID string `json:"roundId"` // requerido em subscribe/unsubscribe
}

// RoundUpdate representa uma transição de round enviada para clientes WebSocket.
// Kind distingue bet/draw/vrf; Payload carrega o evento original.
type RoundUpdate struct {
	RoundID string      `json:"roundId"`
	Kind    string      `json:"kind"`   // bet | draw | vrf
	Status  string      `json:"status"` // estado após a transição
	Payload interface{} `json:"payload,omitempty"`
}
