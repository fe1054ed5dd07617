package client

import (
	"context"
	"image"

	"github.com/menta2k/cardmask/pkg/types"
)

// ImageSource fetches raw scan bytes for a printing
type ImageSource interface {
	Name() string
	Fetch(ctx context.Context, card *types.CardRecord) ([]byte, error)
}

// ImageCache stores raw scans keyed by printing
type ImageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
}

// OutputSink persists a rendered card and returns where it went
type OutputSink interface {
	Write(ctx context.Context, name string, img image.Image) (string, error)
}

// VisionClient queries a local vision model
type VisionClient interface {
	Query(ctx context.Context, model, prompt, imgB64 string) (string, error)
}
