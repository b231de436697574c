package model

import "time"

// ServiceBooking is the embedded booking reference some assignments carry instead
// of a direct provider id.
type ServiceBooking struct {
	ServiceID  string
	ProviderID string
}

// Assignment is a confirmed booking of a provider. Assignments are append-only.
type Assignment struct {
	ID              string
	ProviderID      string
	Service         *ServiceBooking
	Date            string
	TimeSlot        string
	DurationMinutes int
	CustomerName    string
	Notes           string
	CreatedAt       time.Time
}

// ProviderRef resolves the provider either directly or through the service booking.
func (a Assignment) ProviderRef() string {
	if a.ProviderID != "" {
		return a.ProviderID
	}
	if a.Service != nil {
		return a.Service.ProviderID
	}
	return ""
}

func (a Assignment) ServiceID() string {
	if a.Service == nil {
		return ""
	}
	return a.Service.ServiceID
}
