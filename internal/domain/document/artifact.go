package document

import (
	"strings"

	"github.com/google/uuid"
)

// ArtifactContentType is the MIME type of every artifact the pipeline produces
const ArtifactContentType = "application/pdf"

// Artifact is the finished paginated document produced by one render attempt.
// It is transient: it lives in memory until the sink stores it and is never
// cached across requests.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
	PageCount   int // 0 when inspection was skipped or failed
}

// NewArtifact wraps rendered bytes into an artifact with a generated unique
// filename. Empty data is rejected here so a zero-byte document can never
// reach the sink, even when the render phase reported success.
func NewArtifact(quoteNumber string, data []byte) (*Artifact, error) {
	if len(data) == 0 {
		return nil, NewEmptyArtifact(quoteNumber)
	}
	return &Artifact{
		Filename:    BuildArtifactFilename(quoteNumber),
		ContentType: ArtifactContentType,
		Data:        data,
	}, nil
}

// Size returns the artifact size in bytes
func (a *Artifact) Size() int64 {
	return int64(len(a.Data))
}

// BuildArtifactFilename generates a unique artifact filename for a quote.
// The embedded UUID keeps repeated renders of the same quote distinct, so
// a stored artifact is never overwritten by a later render.
func BuildArtifactFilename(quoteNumber string) string {
	return "quote-" + filenameSafe(quoteNumber) + "-" + uuid.New().String() + ".pdf"
}

// filenameSafe maps a quote number onto characters safe for object keys and
// file paths.
func filenameSafe(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "document"
	}
	return out
}
