package anomaly

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// UsageReader provides the bounded event window the detectors scan.
type UsageReader interface {
	EventsSince(ctx context.Context, orgID string, since time.Time, limit int) ([]Event, error)
}

// Report aggregates all detector output for one organization.
type Report struct {
	OrgID       string           `json:"org_id"`
	Flags       []Flag           `json:"flags"`
	Counts      map[Severity]int `json:"counts"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// scanLimit bounds the event window read per report. The detectors are
// expected to complete within a single request's time budget.
const scanLimit = 1000

// detector is one isolated detection pass.
type detector struct {
	name string
	run  func([]Event, time.Time) []Flag
}

var detectors = []detector{
	{"shared-credential", DetectSharedCredentials},
	{"unusual-volume", DetectUnusualVolume},
	{"near-duplicate-sequence", DetectNearDuplicateSequences},
}

// BuildReport reads one bounded window of events and runs every detector
// over the same snapshot. A failing detector is logged and skipped; the
// remaining detectors still contribute. Flags are sorted by severity,
// high first.
func BuildReport(ctx context.Context, reader UsageReader, orgID string, now time.Time) (*Report, error) {
	// 24h covers the widest detector window (near-duplicate sequences).
	events, err := reader.EventsSince(ctx, orgID, now.Add(-24*time.Hour), scanLimit)
	if err != nil {
		return nil, err
	}

	report := &Report{
		OrgID:       orgID,
		Flags:       []Flag{},
		Counts:      map[Severity]int{},
		GeneratedAt: now,
	}

	for _, d := range detectors {
		flags := runIsolated(d, events, now)
		report.Flags = append(report.Flags, flags...)
	}

	sort.SliceStable(report.Flags, func(i, j int) bool {
		return severityRank(report.Flags[i].Severity) > severityRank(report.Flags[j].Severity)
	})
	for _, f := range report.Flags {
		report.Counts[f.Severity]++
	}

	return report, nil
}

// runIsolated recovers a panicking detector so its failure stays local.
func runIsolated(d detector, events []Event, now time.Time) (flags []Flag) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("anomaly detector failed", "detector", d.name, "panic", r)
			flags = nil
		}
	}()
	return d.run(events, now)
}
