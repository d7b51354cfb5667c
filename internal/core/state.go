package core

import (
	"time"

	"pharmacore/pkg/domain"
)

// Phase is the lifecycle position of the hydration sequencer.
type Phase string

// Hydration phases. Transitions are linear: uninitialized, hydrating, then ready or failed.
const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseHydrating     Phase = "hydrating"
	PhaseReady         Phase = "ready"
	PhaseFailed        Phase = "failed"
)

// SyncStatus is the coarse persistence indicator shown to operators.
type SyncStatus string

// Sync statuses.
const (
	StatusIdle   SyncStatus = "idle"
	StatusSaving SyncStatus = "saving"
	StatusSynced SyncStatus = "synced"
	StatusError  SyncStatus = "error"
)

// State is an immutable snapshot of the application view. A published State
// is never modified; mutations build a new one. Callers must treat the
// slices as read-only.
type State struct {
	Phase           Phase             `json:"phase"`
	Status          SyncStatus        `json:"status"`
	Inventory       []domain.Medicine `json:"inventory"`
	Sales           []domain.Sale     `json:"sales"`
	Purchases       []domain.Purchase `json:"purchases"`
	Settings        domain.Settings   `json:"settings"`
	LastPersistedAt time.Time         `json:"lastPersistedAt"`
	LastError       string            `json:"lastError,omitempty"`
}

func initialState() State {
	return State{
		Phase:     PhaseUninitialized,
		Status:    StatusIdle,
		Inventory: []domain.Medicine{},
		Sales:     []domain.Sale{},
		Purchases: []domain.Purchase{},
		Settings:  domain.DefaultSettings(),
	}
}

// Medicine returns the inventory entry with id.
func (s State) Medicine(id string) (domain.Medicine, bool) {
	for _, m := range s.Inventory {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Medicine{}, false
}
