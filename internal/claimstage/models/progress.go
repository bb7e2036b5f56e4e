package models

import (
	wfmodels "claimdesk/internal/workflow/models"
)

// StageProgress pairs a claim stage row with its stage definition.
type StageProgress struct {
	ClaimStage *ClaimStage     `json:"claim_stage"`
	Stage      *wfmodels.Stage `json:"stage"`
}

// BlockerFor returns the earliest open blocking stage that precedes target in
// the ordered progression, or nil when target can be acted on. ordered must
// be sorted by stage order.
func BlockerFor(ordered []*StageProgress, target *StageProgress) *StageProgress {
	for _, prev := range ordered {
		if prev.Stage.Order >= target.Stage.Order {
			return nil
		}
		if prev.Stage.BlocksNext && !prev.ClaimStage.Settled() {
			return prev
		}
	}
	return nil
}

// Advance describes where a claim's progression stands.
type Advance struct {
	// Next is the earliest open stage, nil when Done.
	Next *StageProgress `json:"next,omitempty"`
	// Blocker is the open blocking stage gating the progression. While it
	// is set, Next is not actionable until Blocker is completed or
	// skipped.
	Blocker *StageProgress `json:"blocker,omitempty"`
	// Remaining counts stages not yet settled.
	Remaining int `json:"remaining"`
	// Done means every stage is settled.
	Done bool `json:"done"`
}

// Blocked reports whether progression is gated on an open blocking stage.
func (a *Advance) Blocked() bool {
	return a.Blocker != nil
}

// Progression computes the advance position over stages ordered by stage
// order. Every stage before Next is settled, so the only stage that can hold
// the progression itself back is Next: an open blocks_next stage pins the
// claim until it is settled.
func Progression(ordered []*StageProgress) Advance {
	adv := Advance{}
	for _, p := range ordered {
		if p.ClaimStage.Settled() {
			continue
		}
		if adv.Next == nil {
			adv.Next = p
			if p.Stage.BlocksNext {
				adv.Blocker = p
			}
		}
		adv.Remaining++
	}
	adv.Done = adv.Next == nil
	return adv
}
