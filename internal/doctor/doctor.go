// Package doctor inspects a loaded svcengine configuration for problems that
// pass schema validation but would surprise an operator at runtime.
package doctor

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"

	"github.com/mattjoyce/svcengine/internal/config"
	"github.com/mattjoyce/svcengine/internal/router"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates configuration against the known service kinds.
type Doctor struct {
	cfg   *config.Config
	kinds map[string]bool
}

// New creates a Doctor from a loaded config and the kinds the catalog can build.
func New(cfg *config.Config, kinds []string) *Doctor {
	known := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		known[k] = true
	}
	return &Doctor{cfg: cfg, kinds: known}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateKinds(r)
	d.validateOwnership(r)
	d.validateAuth(r)
	d.warnDisabledServices(r)
	d.warnResources(r)
	d.warnAdminExposure(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateKinds checks that every service names a kind the catalog knows.
func (d *Doctor) validateKinds(r *Result) {
	for i, reg := range d.cfg.Services {
		field := fmt.Sprintf("services[%d].kind", i)
		switch {
		case reg.Kind == "":
			d.addError(r, "kind", field, fmt.Sprintf("service %q has no kind", reg.Name))
		case !d.kinds[reg.Kind]:
			d.addError(r, "kind", field, fmt.Sprintf("service %q: unknown kind %q (known: %s)",
				reg.Name, reg.Kind, strings.Join(d.sortedKinds(), ", ")))
		}
	}
}

func (d *Doctor) sortedKinds() []string {
	out := make([]string, 0, len(d.kinds))
	for k := range d.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// validateOwnership reports every (method, path) claimed by more than one
// enabled service. Under last_wins they are warnings.
func (d *Doctor) validateOwnership(r *Result) {
	policy, err := d.cfg.ConflictPolicy()
	if err != nil {
		d.addError(r, "ownership", "ownership.on_conflict", err.Error())
		return
	}

	owners := make(map[string]string)
	for _, reg := range d.cfg.Services {
		if !reg.Enabled {
			continue
		}
		for _, p := range reg.SortedPaths() {
			for _, m := range reg.OwnedPaths[p].AllowedMethods {
				key := strings.ToUpper(m) + " " + p
				prev, taken := owners[key]
				owners[key] = reg.Name
				if !taken {
					continue
				}
				msg := fmt.Sprintf("%s claimed by %q and %q", key, prev, reg.Name)
				if policy == router.ConflictLastWins {
					d.addWarning(r, "ownership", "", msg+fmt.Sprintf("; %q wins", reg.Name))
				} else {
					d.addError(r, "ownership", "", msg)
				}
			}
		}
	}

	if _, ok := owners["GET /"]; !ok && len(owners) > 0 {
		d.addWarning(r, "ownership", "", "no service owns GET /; unmatched requests get 404")
	}
}

// validateAuth flags auth settings that cannot work as written.
func (d *Doctor) validateAuth(r *Result) {
	for _, reg := range d.cfg.Services {
		for _, p := range reg.SortedPaths() {
			pc := reg.OwnedPaths[p]
			field := fmt.Sprintf("%s.owned_paths.%s", reg.Name, p)
			forced := pc.AuthBasicEnabled != nil && *pc.AuthBasicEnabled
			hasCreds := pc.AuthUsername != "" && (pc.AuthPassword != "" || pc.AuthPasswordHash != "")

			if forced && !hasCreds {
				d.addError(r, "auth", field, "auth_basic_enabled is true but no credentials are set; every request will be refused")
			}
			if pc.AuthPassword != "" {
				d.addWarning(r, "auth", field, "clear-text auth_password; prefer auth_password_hash")
			}
			if hasCreds && !reg.AuthAll() {
				d.addWarning(r, "auth", field,
					"auth_all_enabled is false but this path has credentials; they are still enforced")
			}
		}
	}
}

func (d *Doctor) warnDisabledServices(r *Result) {
	for _, reg := range d.cfg.Services {
		if !reg.Enabled {
			d.addWarning(r, "unused", "", fmt.Sprintf("service %q is disabled", reg.Name))
		}
	}
}

func (d *Doctor) warnResources(r *Result) {
	if d.cfg.ResourceDir != "" {
		if info, err := os.Stat(d.cfg.ResourceDir); err != nil || !info.IsDir() {
			d.addWarning(r, "resources", "resource_dir",
				fmt.Sprintf("%s is not a directory; /favicon.ico will be dispatched", d.cfg.ResourceDir))
		}
	}
	if d.cfg.PIDFile == "" {
		d.addWarning(r, "resources", "pid_file", "no pid_file; two engines may start on the same config")
	}
}

func (d *Doctor) warnAdminExposure(r *Result) {
	if !d.cfg.Admin.Enabled {
		return
	}
	host, _, err := net.SplitHostPort(d.cfg.Admin.Listen)
	if err != nil {
		d.addError(r, "admin", "admin.listen", fmt.Sprintf("invalid address %q: %v", d.cfg.Admin.Listen, err))
		return
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && !ip.IsLoopback()) {
		d.addWarning(r, "admin", "admin.listen",
			"admin endpoints are unauthenticated and listen beyond loopback")
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
