package domain

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type SettlementMailData struct {
	FullName string `json:"fullName"`
	Amount   int64  `json:"amount"`
	Message  string `json:"message"`
}
