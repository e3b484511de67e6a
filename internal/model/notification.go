package model

import "github.com/google/uuid"

// Notification tells an owner that their estimate reached a terminal status
type Notification struct {
	EstimateID uuid.UUID      `json:"estimateId"`
	OwnerID    string         `json:"ownerId"`
	Status     EstimateStatus `json:"status"`
	KcalMean   float64        `json:"kcalMean,omitempty"`
	KcalMin    float64        `json:"kcalMin,omitempty"`
	KcalMax    float64        `json:"kcalMax,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// NotificationFor builds the notification for an estimate in its current state
func NotificationFor(e *Estimate) Notification {
	n := Notification{
		EstimateID: e.ID,
		OwnerID:    e.OwnerID,
		Status:     e.Status,
	}
	switch e.Status {
	case EstimateStatusDone:
		n.KcalMean = e.KcalMean
		n.KcalMin = e.KcalMin
		n.KcalMax = e.KcalMax
	case EstimateStatusFailed:
		if e.LastError != nil {
			n.Reason = *e.LastError
		}
	}
	return n
}
