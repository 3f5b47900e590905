package pipeline

import (
	"context"
	"fmt"
	"os"
)

// TextSource is the external recognition collaborator: it turns an image
// reference into raw OCR text. Capture and recognition engines live behind
// this interface; the pipeline only ever sees their text output. Acquire is
// the one call in the pipeline allowed to block or be cancelled.
type TextSource interface {
	Acquire(ctx context.Context, ref string) (string, error)
}

// FileTextSource reads pre-recognized text dumps from disk. Used by the CLI
// and by tests; production callers plug in their OCR engine instead.
type FileTextSource struct{}

func (FileTextSource) Acquire(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", ref, err)
	}
	return string(b), nil
}
