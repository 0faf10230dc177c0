package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Topic: "round:<id>", "user:<id>" ou "rounds"; obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

// ServerMsg é a resposta de controle (ack, pong, erro)
type ServerMsg struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
	Error string `json:"error,omitempty"`
}
