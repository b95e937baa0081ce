package analysis

import (
	"github.com/anatolykoptev/go_factcheck/internal/store"
)

// Package-level persistence singletons, set from main.go. Both may be nil;
// the pipeline persists best-effort.
var (
	sharedStore  *store.Store
	localHistory *store.History
)

// SetStore installs the shared Postgres store.
func SetStore(s *store.Store) { sharedStore = s }

// GetStore returns the shared store (may be nil).
func GetStore() *store.Store { return sharedStore }

// SetHistory installs the local sqlite history.
func SetHistory(h *store.History) { localHistory = h }

// GetHistory returns the local history (may be nil).
func GetHistory() *store.History { return localHistory }
