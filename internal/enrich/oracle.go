// Package enrich turns raw notices into derived notices via LLM calls: a
// schedule extraction over the body text and, when a PDF attachment is
// present, a supply-metadata extraction over the attachment.
//
// The pipeline is the only parallel region of the system: a bounded worker
// pool drains a shared batch queue, with rate-limit retries local to the
// oracle calls and any other failure aborting the whole run.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dalbodeule/noticecal/internal/model"
)

// ErrCardinality reports that a batch extraction returned a result set whose
// size does not match the input batch. Items can no longer be paired with
// their results, so the run aborts.
var ErrCardinality = errors.New("enrich: result count does not match batch size")

// Schedule holds the two candidate windows extracted from a notice body.
// Either window may be nil when the notice carries no such phase.
type Schedule struct {
	Application *model.Window
	Result      *model.Window
}

// SupplyEntry is one unit-type row of the supply table.
type SupplyEntry struct {
	Type  string `json:"type"`
	Units int    `json:"supply"`
}

// Presentation values for how result announcements are delivered.
const (
	PresentationHomepage = "HOMEPAGE"
	PresentationContact  = "CONTACT"
	PresentationUnknown  = "UNKNOWN"
)

// SupplyMetadata is the structured summary extracted from a notice's PDF
// attachment. The zero value doubles as the "no attachment" sentinel.
type SupplyMetadata struct {
	SpecialYouth    []SupplyEntry `json:"special_youth"`
	SpecialNewlywed []SupplyEntry `json:"special_newlywed"`
	GeneralYouth    []SupplyEntry `json:"general_youth"`
	GeneralNewlywed []SupplyEntry `json:"general_newlywed"`
	GeneralAll      []SupplyEntry `json:"general_all"`

	Presentation string  `json:"presentation"`
	Homepage     *string `json:"homepage"`
}

// IsZero reports whether the metadata carries no extracted content.
func (m *SupplyMetadata) IsZero() bool {
	if m == nil {
		return true
	}
	return len(m.SpecialYouth) == 0 && len(m.SpecialNewlywed) == 0 &&
		len(m.GeneralYouth) == 0 && len(m.GeneralNewlywed) == 0 &&
		len(m.GeneralAll) == 0 &&
		(m.Presentation == "" || m.Presentation == PresentationUnknown)
}

// Summary renders the metadata as memo text. Returns "" for the sentinel.
func (m *SupplyMetadata) Summary() string {
	if m.IsZero() {
		return ""
	}

	var b strings.Builder

	writeGroup := func(label string, entries []SupplyEntry) {
		if len(entries) == 0 {
			return
		}
		parts := make([]string, 0, len(entries))
		for _, e := range entries {
			parts = append(parts, fmt.Sprintf("%s %d호", e.Type, e.Units))
		}
		fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(parts, ", "))
	}

	writeGroup("특별공급 청년", m.SpecialYouth)
	writeGroup("특별공급 신혼부부", m.SpecialNewlywed)
	writeGroup("일반공급 청년", m.GeneralYouth)
	writeGroup("일반공급 신혼부부", m.GeneralNewlywed)
	writeGroup("일반공급 전체대상", m.GeneralAll)

	switch m.Presentation {
	case PresentationHomepage:
		if m.Homepage != nil {
			fmt.Fprintf(&b, "발표: 홈페이지 (%s)\n", *m.Homepage)
		} else {
			b.WriteString("발표: 홈페이지\n")
		}
	case PresentationContact:
		b.WriteString("발표: 개별 연락\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// Oracle is the enrichment boundary. Implementations signal rate-limiting
// by retrying internally; any error they return is fatal for the run.
type Oracle interface {
	// ExtractScheduleBatch extracts one Schedule per body, in order. The
	// returned slice has exactly len(bodies) entries.
	ExtractScheduleBatch(ctx context.Context, bodies []string) ([]Schedule, error)

	// ExtractAttachment extracts supply metadata from PDF bytes. Empty
	// input returns the zero-value sentinel without a remote call.
	ExtractAttachment(ctx context.Context, pdf []byte) (*SupplyMetadata, error)
}
