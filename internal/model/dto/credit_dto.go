package dto

// CreditsResponse current balance
type CreditsResponse struct {
	Credits int `json:"credits"`
}

// DeductRequest amount defaults to 1
type DeductRequest struct {
	Amount int `json:"amount"`
}

// DeductResponse Success is false when the balance was too low
type DeductResponse struct {
	Success bool `json:"success"`
	Credits int  `json:"credits"`
}
