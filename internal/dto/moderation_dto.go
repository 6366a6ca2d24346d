package dto

type SubmitReportRequest struct {
	TargetType  string `json:"target_type"`
	TargetID    string `json:"target_id"`
	Reason      string `json:"reason"`
	Description string `json:"description,omitempty"`
}

type SubmitReportResponse struct {
	Accepted bool `json:"accepted"`
}

type SubmitAppealRequest struct {
	ReferenceCode string `json:"reference_code"`
	Justification string `json:"justification"`
}

type SubmitAppealResponse struct {
	Queued bool `json:"queued"`
}

type RegisterContentRequest struct {
	Kind     string `json:"kind"`
	Body     string `json:"body"`
	MediaURL string `json:"media_url,omitempty"`
}

type AccountActionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Admin

type DecisionRequest struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Decision   string `json:"decision"`
	Reason     string `json:"reason"`
}

type ResolveAppealRequest struct {
	Outcome string `json:"outcome"`
	Note    string `json:"note,omitempty"`
}

type StrikeRequest struct {
	AccountID string `json:"account_id"`
	Reason    string `json:"reason"`
	Source    string `json:"source,omitempty"`
}

type TrustScoreRequest struct {
	TrustScore *int `json:"trust_score"`
}

type PolicyValueRequest struct {
	Value string `json:"value"`
}

// StrikeWebhook is the payload enforcement systems (copyright, fraud) send.
type StrikeWebhook struct {
	AccountID string `json:"account_id"`
	Reason    string `json:"reason"`
	Source    string `json:"source"`
}
