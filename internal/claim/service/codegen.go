package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"claimdesk/internal/claim/models"
	"claimdesk/internal/platform/metrics"
	id "claimdesk/pkg/domain"
	dErrors "claimdesk/pkg/domain-errors"
)

// CounterStore allocates monotonically increasing sequence numbers per key.
// Next must be atomic under concurrent callers.
type CounterStore interface {
	Next(ctx context.Context, key string) (int, error)
}

// CodeIndex answers whether a code is already taken. Codes are unique across
// all claims, including soft-deleted ones.
type CodeIndex interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// maxCodeAttempts bounds the retry loop when an allocated code collides with
// a manually assigned one.
const maxCodeAttempts = 5

// CodeGenerator produces claim tracking codes of the form PREFIX-SEQ-YY:
// the provenance short code (or a numeric fallback derived from the
// provenance ID), a zero-padded sequence from the per-(prefix, year)
// counter, and the incident year's two last digits.
type CodeGenerator struct {
	counters CounterStore
	index    CodeIndex
	metrics  *metrics.Metrics
}

func NewCodeGenerator(counters CounterStore, index CodeIndex, m *metrics.Metrics) *CodeGenerator {
	return &CodeGenerator{counters: counters, index: index, metrics: m}
}

// Generate allocates a unique code for the claim. The year comes from the
// claim's incident date, so the sequence scope is stable no matter when
// allocation happens. The sequence counter only moves forward, so retries
// after a collision never reuse a sequence number.
func (g *CodeGenerator) Generate(ctx context.Context, claim *models.Claim, prov *models.Provenance) (string, error) {
	if prov == nil {
		return "", dErrors.New(dErrors.CodeInvalidState, "claim has no provenance party, code stays unset")
	}
	prefix := prov.Code
	if prefix == "" {
		prefix = fallbackPrefix(prov.ID)
	}
	year := claim.ClaimDate.Year()

	counterKey := fmt.Sprintf("%s:%d", prefix, year)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		seq, err := g.counters.Next(ctx, counterKey)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate code sequence")
		}
		code := formatCode(prefix, seq, year)

		taken, err := g.index.CodeExists(ctx, code)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check code uniqueness")
		}
		if !taken {
			if g.metrics != nil {
				g.metrics.ClaimCodesGenerated.Inc()
			}
			return code, nil
		}
		if g.metrics != nil {
			g.metrics.ClaimCodeConflicts.Inc()
		}
	}
	return "", dErrors.New(dErrors.CodeConflict, "could not allocate a unique claim code")
}

// formatCode pads the sequence to three digits but never truncates it; the
// thousandth allocation for a scope renders as "1000".
func formatCode(prefix string, seq, year int) string {
	return fmt.Sprintf("%s-%03d-%02d", prefix, seq, year%100)
}

// fallbackPrefix derives a stable three-digit prefix from the provenance ID
// when the party carries no short code, so all of a party's claims share a
// prefix and a sequence scope.
func fallbackPrefix(provenanceID id.ProvenanceID) string {
	raw := uuid.UUID(provenanceID)
	n, err := strconv.ParseUint(fmt.Sprintf("%x", raw[:4]), 16, 64)
	if err != nil {
		n = uint64(time.Now().UnixNano())
	}
	return fmt.Sprintf("%03d", n%1000)
}
