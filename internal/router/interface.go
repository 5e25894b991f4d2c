package router

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOwnershipConflict is returned by Build when two enabled owners declare the
// same (method, path) pair and the conflict policy is ConflictReject.
var ErrOwnershipConflict = errors.New("ownership conflict")

// Owner is the part of a service the ownership table needs.
type Owner interface {
	Name() string
	Enabled() bool
	// OwnedPathsByMethod returns, per HTTP method, the paths this owner declares.
	OwnedPathsByMethod() map[string][]string
	// FullMatchOnly reports whether path may only be claimed by an exact match.
	FullMatchOnly(path string) bool
}

// ConflictPolicy decides what Build does with duplicate (method, path) declarations.
type ConflictPolicy string

const (
	// ConflictReject fails table construction on the first duplicate.
	ConflictReject ConflictPolicy = "reject"
	// ConflictLastWins keeps the owner registered last and logs the overwrite.
	ConflictLastWins ConflictPolicy = "last_wins"
)

// ParseConflictPolicy maps a config value onto a policy. Empty means reject.
func ParseConflictPolicy(raw string) (ConflictPolicy, error) {
	switch ConflictPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ConflictReject:
		return ConflictReject, nil
	case ConflictLastWins, "last-wins":
		return ConflictLastWins, nil
	default:
		return "", fmt.Errorf("unknown ownership conflict policy %q (supported: reject, last_wins)", raw)
	}
}
