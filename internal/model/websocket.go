package model

// WebSocket message types
const (
	WSMessageTypeStatus = "status"
	WSMessageTypeError  = "error"
	WSMessageTypePing   = "ping"
	WSMessageTypePong   = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSStatusMessage is sent when an estimate reaches a terminal status
type WSStatusMessage struct {
	Type       string         `json:"type"`
	EstimateID string         `json:"estimateId"`
	Status     EstimateStatus `json:"status"`
	KcalMean   float64        `json:"kcalMean,omitempty"`
	KcalMin    float64        `json:"kcalMin,omitempty"`
	KcalMax    float64        `json:"kcalMax,omitempty"`
	Error      *WSError       `json:"error,omitempty"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WSStatusFrom converts a notification into the message pushed to clients
func WSStatusFrom(n Notification) WSStatusMessage {
	msg := WSStatusMessage{
		Type:       WSMessageTypeStatus,
		EstimateID: n.EstimateID.String(),
		Status:     n.Status,
		KcalMean:   n.KcalMean,
		KcalMin:    n.KcalMin,
		KcalMax:    n.KcalMax,
	}
	if n.Status == EstimateStatusFailed {
		msg.Error = &WSError{Code: "ESTIMATION_FAILED", Message: n.Reason}
	}
	return msg
}

// WSStatusFromView builds the first frame sent to a newly connected client
func WSStatusFromView(v *EstimateView) WSStatusMessage {
	msg := WSStatusMessage{
		Type:       WSMessageTypeStatus,
		EstimateID: v.EstimateID,
		Status:     v.Status,
	}
	if v.Result != nil {
		msg.KcalMean = v.Result.KcalMean
		msg.KcalMin = v.Result.KcalMin
		msg.KcalMax = v.Result.KcalMax
	}
	if v.Status == EstimateStatusFailed {
		reason := ""
		if v.Reason != nil {
			reason = *v.Reason
		}
		msg.Error = &WSError{Code: "ESTIMATION_FAILED", Message: reason}
	}
	return msg
}
