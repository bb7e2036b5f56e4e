package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ClaimsCreated        prometheus.Counter
	ClaimCodesGenerated  prometheus.Counter
	ClaimCodeConflicts   prometheus.Counter
	StagesInitialized    prometheus.Counter
	StagesCompleted      prometheus.Counter
	StagesSkipped        prometheus.Counter
	AdvanceBlocked       prometheus.Counter
	VersionsCreated      prometheus.Counter
	VersionsRestored     prometheus.Counter
	ResolverCacheHits    prometheus.Counter
	ResolverCacheMisses  prometheus.Counter
	DefaultWorkflowSwaps prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ClaimsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_claims_created_total",
			Help: "Total number of claims created.",
		}),
		ClaimCodesGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_claim_codes_generated_total",
			Help: "Total number of claim codes allocated.",
		}),
		ClaimCodeConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_claim_code_conflicts_total",
			Help: "Claim code allocations that hit a uniqueness collision and retried.",
		}),
		StagesInitialized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_claim_stages_initialized_total",
			Help: "Total number of claim stage rows created by initialization.",
		}),
		StagesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_claim_stages_completed_total",
			Help: "Total number of claim stages completed.",
		}),
		StagesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_claim_stages_skipped_total",
			Help: "Total number of claim stages skipped.",
		}),
		AdvanceBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_advance_blocked_total",
			Help: "Advance calls rejected by an incomplete blocking stage.",
		}),
		VersionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_description_versions_created_total",
			Help: "Total number of description versions written.",
		}),
		VersionsRestored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_description_versions_restored_total",
			Help: "Description versions created by restoring an older version.",
		}),
		ResolverCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_resolver_cache_hits_total",
			Help: "Default-workflow resolutions served from the Redis cache.",
		}),
		ResolverCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_resolver_cache_misses_total",
			Help: "Default-workflow resolutions that fell through to the store.",
		}),
		DefaultWorkflowSwaps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_default_workflow_swaps_total",
			Help: "Times the default flag moved between workflows in a scope.",
		}),
	}
}
