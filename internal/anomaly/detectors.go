// Package anomaly computes advisory suspicion flags from windows of API
// usage events. Flags never block a request; each detector is isolated so
// one failing detector cannot suppress the others' results.
package anomaly

import (
	"fmt"
	"sort"
	"time"
)

// FlagType names a suspicion category.
type FlagType string

const (
	FlagSharedCredential      FlagType = "shared-credential"
	FlagUnusualVolume         FlagType = "unusual-volume"
	FlagNearDuplicateSequence FlagType = "near-duplicate-sequence"
)

// Severity grades a flag.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Event is one usage log row, reduced to the fields the detectors read.
type Event struct {
	SubjectID string
	Endpoint  string
	Method    string
	SourceIP  string
	Timestamp time.Time
}

// Flag is one suspicion finding for a subject. Ephemeral, never persisted.
type Flag struct {
	SubjectID  string    `json:"subject_id"`
	Type       FlagType  `json:"flag_type"`
	Severity   Severity  `json:"severity"`
	Details    string    `json:"details"`
	DetectedAt time.Time `json:"detected_at"`
}

const (
	sharedIPThreshold     = 3
	sharedIPHighThreshold = 5
	volumeMeanMultiplier  = 3.0
	minCallsForSequence   = 5
	jaccardFlagThreshold  = 0.8
	jaccardHighThreshold  = 0.95
)

// DetectSharedCredentials flags subjects whose events in the last hour
// came from 3+ distinct source IPs (high at 5+).
func DetectSharedCredentials(events []Event, now time.Time) []Flag {
	cutoff := now.Add(-time.Hour)
	ipsBySubject := make(map[string]map[string]struct{})

	for _, ev := range events {
		if ev.Timestamp.Before(cutoff) || ev.SubjectID == "" || ev.SourceIP == "" {
			continue
		}
		ips, ok := ipsBySubject[ev.SubjectID]
		if !ok {
			ips = make(map[string]struct{})
			ipsBySubject[ev.SubjectID] = ips
		}
		ips[ev.SourceIP] = struct{}{}
	}

	var flags []Flag
	for subject, ips := range ipsBySubject {
		if len(ips) < sharedIPThreshold {
			continue
		}
		severity := SeverityMedium
		if len(ips) >= sharedIPHighThreshold {
			severity = SeverityHigh
		}
		flags = append(flags, Flag{
			SubjectID:  subject,
			Type:       FlagSharedCredential,
			Severity:   severity,
			Details:    fmt.Sprintf("key used from %d distinct IPs in the last hour", len(ips)),
			DetectedAt: now,
		})
	}
	return flags
}

// DetectUnusualVolume flags subjects whose call count today exceeds three
// times the mean across subjects. Skipped entirely when the mean is zero.
func DetectUnusualVolume(events []Event, now time.Time) []Flag {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	counts := make(map[string]int)

	for _, ev := range events {
		if ev.Timestamp.Before(dayStart) || ev.SubjectID == "" {
			continue
		}
		counts[ev.SubjectID]++
	}
	if len(counts) == 0 {
		return nil
	}

	total := 0
	for _, c := range counts {
		total += c
	}
	mean := float64(total) / float64(len(counts))
	if mean == 0 {
		return nil
	}
	threshold := volumeMeanMultiplier * mean

	var flags []Flag
	for subject, count := range counts {
		c := float64(count)
		if c <= threshold {
			continue
		}
		severity := SeverityLow
		switch {
		case c > 2*threshold:
			severity = SeverityHigh
		case c > 1.5*threshold:
			severity = SeverityMedium
		}
		flags = append(flags, Flag{
			SubjectID:  subject,
			Type:       FlagUnusualVolume,
			Severity:   severity,
			Details:    fmt.Sprintf("%d calls today vs mean of %.1f per subject", count, mean),
			DetectedAt: now,
		})
	}
	return flags
}

// DetectNearDuplicateSequences compares the endpoint-call sets of subjects
// with 5+ calls in the last 24h and flags both members of any pair whose
// Jaccard similarity is >= 0.8 (high at >= 0.95).
//
// This is O(subjects^2). Acceptable because subject counts per org are
// small (tens to low hundreds); if that changes, bucket by a cheap
// fingerprint (minhash of the pair set) before exact Jaccard.
func DetectNearDuplicateSequences(events []Event, now time.Time) []Flag {
	cutoff := now.Add(-24 * time.Hour)
	callCount := make(map[string]int)
	pairSets := make(map[string]map[string]struct{})

	for _, ev := range events {
		if ev.Timestamp.Before(cutoff) || ev.SubjectID == "" {
			continue
		}
		callCount[ev.SubjectID]++
		set, ok := pairSets[ev.SubjectID]
		if !ok {
			set = make(map[string]struct{})
			pairSets[ev.SubjectID] = set
		}
		set[ev.Method+":"+ev.Endpoint] = struct{}{}
	}

	var subjects []string
	for subject, count := range callCount {
		if count >= minCallsForSequence {
			subjects = append(subjects, subject)
		}
	}
	sort.Strings(subjects) // deterministic pairing order

	flagged := make(map[string]Severity)
	for i := 0; i < len(subjects); i++ {
		for j := i + 1; j < len(subjects); j++ {
			sim := jaccard(pairSets[subjects[i]], pairSets[subjects[j]])
			if sim < jaccardFlagThreshold {
				continue
			}
			severity := SeverityMedium
			if sim >= jaccardHighThreshold {
				severity = SeverityHigh
			}
			upgrade(flagged, subjects[i], severity)
			upgrade(flagged, subjects[j], severity)
		}
	}

	var flags []Flag
	for _, subject := range subjects {
		severity, ok := flagged[subject]
		if !ok {
			continue
		}
		flags = append(flags, Flag{
			SubjectID:  subject,
			Type:       FlagNearDuplicateSequence,
			Severity:   severity,
			Details:    "endpoint-call sequence nearly identical to another subject",
			DetectedAt: now,
		})
	}
	return flags
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func upgrade(m map[string]Severity, subject string, severity Severity) {
	if current, ok := m[subject]; ok && severityRank(current) >= severityRank(severity) {
		return
	}
	m[subject] = severity
}

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}
