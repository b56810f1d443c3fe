package portal

// Result is the outcome of delivering one record. StatusCode 0 means the
// request never got a response; Body then carries the error text instead of
// the response body.
type Result struct {
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
}

func (r Result) Delivered() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Outcome classifies a result for observability. Nothing acts on the class
// automatically; it exists so logs and the status endpoint can say what kind
// of failure happened.
type Outcome string

const (
	OutcomeDelivered      Outcome = "delivered"
	OutcomeNetworkFailure Outcome = "network_failure"
	OutcomeStaleToken     Outcome = "stale_token"
	OutcomeForbidden      Outcome = "forbidden"
	OutcomeNotFound       Outcome = "endpoint_not_found"
	OutcomeServerError    Outcome = "server_error"
	OutcomeRejected       Outcome = "rejected"
)

func (r Result) Outcome() Outcome {
	switch {
	case r.StatusCode == 0:
		return OutcomeNetworkFailure
	case r.Delivered():
		return OutcomeDelivered
	case r.StatusCode == 401:
		return OutcomeStaleToken
	case r.StatusCode == 403:
		return OutcomeForbidden
	case r.StatusCode == 404:
		return OutcomeNotFound
	case r.StatusCode >= 500:
		return OutcomeServerError
	default:
		return OutcomeRejected
	}
}

// Summary aggregates one SendMany call. Success and Failed always sum to
// Sent.
type Summary struct {
	Sent    int `json:"sent"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}
