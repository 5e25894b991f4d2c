package router

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Table maps HTTP method to path to owning service. It is built once by Build
// and never mutated afterwards, so concurrent Resolve calls need no locking.
type Table[S Owner] struct {
	routes map[string]map[string]S
}

// Build inserts every (method, path) declared by the enabled owners.
// Owners are processed in slice order; with ConflictLastWins a later owner
// replaces an earlier one for the same pair.
func Build[S Owner](owners []S, policy ConflictPolicy, logger *slog.Logger) (*Table[S], error) {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = ConflictReject
	}

	t := &Table[S]{routes: make(map[string]map[string]S)}
	for _, owner := range owners {
		if !owner.Enabled() {
			logger.Debug("skipping disabled service", "service", owner.Name())
			continue
		}

		byMethod := owner.OwnedPathsByMethod()
		methods := make([]string, 0, len(byMethod))
		for m := range byMethod {
			methods = append(methods, m)
		}
		sort.Strings(methods)

		for _, m := range methods {
			method := strings.ToUpper(m)
			sub, ok := t.routes[method]
			if !ok {
				sub = make(map[string]S)
				t.routes[method] = sub
			}
			for _, p := range byMethod[m] {
				if prev, exists := sub[p]; exists {
					if policy == ConflictReject {
						return nil, fmt.Errorf("%w: %s %s declared by %q and %q",
							ErrOwnershipConflict, method, p, prev.Name(), owner.Name())
					}
					logger.Warn("ownership overwritten, last registration wins",
						"method", method,
						"path", p,
						"previous", prev.Name(),
						"service", owner.Name(),
					)
				}
				sub[p] = owner
			}
		}
	}
	return t, nil
}

// Resolve returns the most specific owner of path for method.
//
// An exact hit on the requested path always wins. An ancestor hit only counts
// when the owner does not require a full match for that ancestor path.
func (t *Table[S]) Resolve(method, path string) (S, bool) {
	var found S
	ok := false

	sub := t.routes[strings.ToUpper(method)]
	if len(sub) == 0 {
		return found, false
	}

	Walk(path, func(candidate string, trimmed bool) bool {
		owner, hit := sub[candidate]
		if !hit {
			return true
		}
		if trimmed && owner.FullMatchOnly(candidate) {
			return true
		}
		found, ok = owner, true
		return false
	})
	return found, ok
}

// Methods lists the methods that have at least one owned path.
func (t *Table[S]) Methods() []string {
	out := make([]string, 0, len(t.routes))
	for m := range t.routes {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
