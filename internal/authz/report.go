package authz

import "time"

// TransitionEntry is one row of the dumped role transition table.
type TransitionEntry struct {
	Role    string `json:"role"`
	From    string `json:"from"`
	To      string `json:"to"`
	Allowed bool   `json:"allowed"`
}

// AccessEntry is one cell of the dumped role×status access matrix.
type AccessEntry struct {
	Role    string `json:"role"`
	Status  string `json:"status"`
	Allowed bool   `json:"allowed"`
}

// Report is the operational inspection view of the engine: current cache
// counters plus dumps of the static decision tables. Read-only.
type Report struct {
	GeneratedAt  time.Time           `json:"generated_at"`
	Cache        CacheStats          `json:"cache"`
	AccessMatrix []AccessEntry       `json:"access_matrix"`
	Transitions  []TransitionEntry   `json:"transitions"`
	Bundles      map[string][]string `json:"bundles"`
}

// Snapshot assembles the inspection report from the resolver's rule tables
// and cache counters.
func (r *Resolver) Snapshot(now time.Time) Report {
	report := Report{
		GeneratedAt: now,
		Cache:       r.CacheStats(),
		Bundles:     make(map[string][]string, len(Roles())),
	}
	for _, role := range Roles() {
		actor := Actor{Role: role}
		report.Bundles[role.String()] = BundleFor(role)
		for _, status := range Statuses() {
			patient := Patient{Status: status}
			report.AccessMatrix = append(report.AccessMatrix, AccessEntry{
				Role:    role.String(),
				Status:  status.String(),
				Allowed: r.rules.CanAccessPatient(actor, patient),
			})
			for _, next := range Statuses() {
				if next == status {
					continue
				}
				report.Transitions = append(report.Transitions, TransitionEntry{
					Role:    role.String(),
					From:    status.String(),
					To:      next.String(),
					Allowed: r.rules.CanChangeStatus(actor, patient, next),
				})
			}
		}
	}
	return report
}
