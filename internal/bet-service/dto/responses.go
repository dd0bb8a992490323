package dto

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type StatsResponse struct {
	UserID    string  `json:"userId"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	Open      int     `json:"open"`
	Pending   int     `json:"pending"`
	Cancelled int     `json:"cancelled"`
	Net       string  `json:"net"`
	WinRate   float64 `json:"winRate"`
}
