package models

import (
	"errors"
	"time"
)

var ErrDonationCommitted = errors.New("donation already committed")

type DonationStatus string

const (
	DonationAvailable DonationStatus = "available"
	DonationCommitted DonationStatus = "committed"
)

// Donation is an offer of resources from a donor. Location may embed GPS.
type Donation struct {
	ID         string         `json:"id"`
	DonorName  string         `json:"donor_name"`
	Location   string         `json:"location"`
	Resources  []string       `json:"resources"`
	Quantity   string         `json:"quantity"`
	Contact    string         `json:"contact"`
	Notes      string         `json:"notes,omitempty"`
	Status     DonationStatus `json:"status"`
	AssignedTo string         `json:"assigned_to,omitempty"`
	PostedAt   time.Time      `json:"posted_time"`
}

func (d Donation) Available() bool {
	return d.Status == DonationAvailable
}

const SafeZoneSafe = "safe"

// SafeZone is a relief hub in an unaffected area that can hand out or
// collect resources.
type SafeZone struct {
	ID            string   `json:"id"`
	Location      string   `json:"location"`
	Status        string   `json:"status"`
	Resources     []string `json:"resources_available"`
	ContactPerson string   `json:"contact_person"`
	ContactNumber string   `json:"contact_number"`
}

func (z SafeZone) Available() bool {
	return z.Status == SafeZoneSafe
}

type NeedStatus string

const (
	NeedOpen      NeedStatus = "needed"
	NeedFulfilled NeedStatus = "fulfilled"
)

// Need is a resource shortage posted for an affected area.
type Need struct {
	ID          string       `json:"id"`
	Location    string       `json:"location"`
	Resource    string       `json:"need_type"`
	Quantity    string       `json:"quantity"`
	Urgency     UrgencyLevel `json:"urgency"`
	Description string       `json:"description,omitempty"`
	Status      NeedStatus   `json:"status"`
	PostedAt    time.Time    `json:"posted_time"`
}
