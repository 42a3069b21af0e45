package notification

import (
	"context"
	"time"
)

// Permission mirrors the platform notification permission model.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

func ParsePermission(s string) Permission {
	switch Permission(s) {
	case PermissionGranted, PermissionDenied:
		return Permission(s)
	default:
		return PermissionDefault
	}
}

// Alert is a raised "target price reached" notification.
type Alert struct {
	MonitorID  string    `json:"monitorId"`
	Airline    string    `json:"airline"`
	Price      float64   `json:"price"`
	Timestamp  int64     `json:"timestamp"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Icon       string    `json:"icon,omitempty"`
	ClickURL   string    `json:"clickUrl,omitempty"`
	IsNonStop  bool      `json:"isNonStop"`
	RaisedAt   time.Time `json:"raisedAt"`
	Synthetic  bool      `json:"synthetic,omitempty"`
	Route      string    `json:"route"`
	PriceLabel string    `json:"priceLabel"`
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

