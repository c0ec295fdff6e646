// Package media provides media resolution functionality.
package media

import (
	"context"

	"norelock.dev/waveroom/backend/internal/models"
)

// Provider defines the interface for media providers.
type Provider interface {
	// Resolve retrieves metadata for a media item by its source ID.
	Resolve(ctx context.Context, sourceID string) (*models.MediaInfo, error)

	// Type returns the provider type (e.g., "youtube").
	Type() string
}
