package ports

import (
	"context"

	"github.com/aretw0/arbiter/pkg/domain"
)

// ContentVerifier checks the authenticity of a piece of content.
type ContentVerifier interface {
	Verify(ctx context.Context, content []byte, contentType string, metadata map[string]any) (*domain.Verification, error)
}
