package types

// Statuses the servlets put in their "status" field.
const (
	StatusOK      = "ok"
	StatusSuccess = "success"
	StatusBlocked = "blocked"
	StatusExists  = "exists"
	StatusFail    = "fail"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// StatusResponse is the minimal {status, message} body shared by most servlet actions.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (s StatusResponse) OK() bool {
	return s.Status == StatusOK || s.Status == StatusSuccess
}

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
