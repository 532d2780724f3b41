package api

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
	Code  string `json:"code,omitempty" example:"token_expired"`
}

type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

type HealthResponse struct {
	Status  string `json:"status" example:"ok"`
	Storage string `json:"storage,omitempty" example:"postgres"`
	Redis   *bool  `json:"redis,omitempty"`
}
