package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type ListResponse struct {
	OK     bool `json:"ok"`
	Data   any  `json:"data"`
	Limit  int  `json:"limit"`
	Offset int  `json:"offset"`
}
