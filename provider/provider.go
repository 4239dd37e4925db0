package provider

import (
	"context"
)

// Record is a provider-side DNS record. ID is the provider-assigned identity;
// Content is the only field this system ever changes. Proxied and TTL are
// echoed back verbatim on update.
type Record struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Proxied bool   `json:"proxied"`
	TTL     int    `json:"ttl"`
}

type Provider interface {
	// Records returns the A records matching name exactly.
	Records(ctx context.Context, name string) ([]Record, error)
	// UpdateRecord replaces the record identified by record.ID with the full
	// payload and returns the provider's view of the result.
	UpdateRecord(ctx context.Context, record Record) (Record, error)
}
