// Package fingerprint classifies incoming raw notices against the mirror so
// that only new or changed notices reach the enrichment pipeline.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/dalbodeule/noticecal/internal/model"
)

// NoAttachment is the attachment fingerprint of a notice without one.
const NoAttachment = "none"

// Class is the change-detection verdict for one raw notice.
type Class int

const (
	// New: no mirrored notice exists for this board id.
	New Class = iota
	// Changed: the content or attachment fingerprint differs from the mirror.
	Changed
	// Unchanged: both fingerprints match; the notice is skipped.
	Unchanged
)

func (c Class) String() string {
	switch c {
	case New:
		return "new"
	case Changed:
		return "changed"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Content returns the fingerprint of a notice body. Line endings and
// surrounding whitespace are normalized so that transport-level noise does
// not force re-enrichment.
func Content(body string) string {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.TrimSpace(normalized)

	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Attachment returns the fingerprint of attachment bytes, or NoAttachment
// when the notice has none.
func Attachment(data []byte) string {
	if len(data) == 0 {
		return NoAttachment
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Classify compares a raw notice against its mirrored form. prior is the
// mirrored notice with the same board id, or nil when none exists.
// Classification is pure: the caller owns all mutation.
func Classify(raw *model.RawNotice, prior *model.Notice) Class {
	if prior == nil {
		return New
	}

	if Content(raw.Content) != prior.ContentHash {
		return Changed
	}
	if Attachment(raw.Attachment) != prior.AttachmentHash {
		return Changed
	}

	return Unchanged
}
