// Package archive is the persistence sink for finalized lead qualification
// records. Writes are fire-and-forget from the orchestrator's perspective.
// Implementations: sqlite.Store (default) and postgres.Store.
package archive

import (
	"context"

	"github.com/leadline/leadline/pkg/models"
)

// Archive persists finalized lead records.
type Archive interface {
	SaveLead(ctx context.Context, rec models.LeadRecord) error
	ListLeads(ctx context.Context, limit int) ([]models.LeadRecord, error)
	Close() error
}

// Nop discards records; used in tests and when archiving is disabled.
type Nop struct{}

func (Nop) SaveLead(ctx context.Context, rec models.LeadRecord) error { return nil }

func (Nop) ListLeads(ctx context.Context, limit int) ([]models.LeadRecord, error) {
	return nil, nil
}

func (Nop) Close() error { return nil }
