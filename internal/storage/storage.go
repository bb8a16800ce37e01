package storage

import (
	"context"

	"github.com/slok/agentgw/internal/model"
)

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name ProfileRepository

// ProfileRepository is the read contract of a profile catalog. Rows are
// returned in catalog order.
type ProfileRepository interface {
	ListProfileRows(ctx context.Context) ([]model.ProfileRow, error)
}
