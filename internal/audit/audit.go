// Package audit produces the offline duplicate-profile report. It groups
// songwriter profiles that look like the same person and leaves the merge
// decision to a human; nothing in this package mutates the catalog.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"songscout/internal/identity"
	"songscout/internal/logging"
	"songscout/internal/store"
)

// DuplicateGroup is a set of profiles suspected to be the same songwriter.
type DuplicateGroup struct {
	Reason   string              `json:"reason"`
	Profiles []*store.Songwriter `json:"profiles"`
}

// Report is the result of one audit run.
type Report struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	ProfilesScanned int              `json:"profiles_scanned"`
	Groups          []DuplicateGroup `json:"groups"`
}

// Auditor scans the profile catalog for likely duplicates.
type Auditor struct {
	store  *store.Store
	logger *slog.Logger
}

// New builds an auditor.
func New(st *store.Store, logger *slog.Logger) *Auditor {
	return &Auditor{
		store:  st,
		logger: logging.NewComponentLogger(logger, "audit"),
	}
}

// Run scans every profile and reports duplicate candidates. Two detection
// passes feed the report: exact normalized-name collisions, and profiles
// whose name tokens match after reordering. Profiles already flagged by the
// first pass are excluded from the second so each pair appears once.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	writers, err := a.store.ListSongwriters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list songwriters: %w", err)
	}

	report := &Report{
		GeneratedAt:     time.Now().UTC(),
		ProfilesScanned: len(writers),
	}

	flagged := make(map[int64]bool)
	for _, group := range groupBy(writers, func(sw *store.Songwriter) string {
		return sw.NormalizedName
	}) {
		report.Groups = append(report.Groups, DuplicateGroup{
			Reason:   fmt.Sprintf("identical normalized name %q", group[0].NormalizedName),
			Profiles: group,
		})
		for _, sw := range group {
			flagged[sw.ID] = true
		}
	}

	var remaining []*store.Songwriter
	for _, sw := range writers {
		if !flagged[sw.ID] {
			remaining = append(remaining, sw)
		}
	}
	for _, group := range groupBy(remaining, tokenSignature) {
		report.Groups = append(report.Groups, DuplicateGroup{
			Reason:   fmt.Sprintf("same name tokens in different order (%s)", tokenSignature(group[0])),
			Profiles: group,
		})
	}

	sort.Slice(report.Groups, func(i, j int) bool {
		return report.Groups[i].Profiles[0].ID < report.Groups[j].Profiles[0].ID
	})

	a.logger.Info("audit complete",
		logging.Int("profiles", report.ProfilesScanned),
		logging.Int("duplicate_groups", len(report.Groups)))
	return report, nil
}

// groupBy buckets profiles by key and keeps only buckets with two or more
// members. Single-token keys are skipped: one shared token is too weak a
// signal to report.
func groupBy(writers []*store.Songwriter, key func(*store.Songwriter) string) [][]*store.Songwriter {
	buckets := make(map[string][]*store.Songwriter)
	var order []string
	for _, sw := range writers {
		k := key(sw)
		if k == "" || !strings.Contains(k, " ") {
			continue
		}
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], sw)
	}

	var groups [][]*store.Songwriter
	for _, k := range order {
		if len(buckets[k]) >= 2 {
			groups = append(groups, buckets[k])
		}
	}
	return groups
}

// tokenSignature is the normalized name with its tokens sorted, so
// "Allen Amy" and "Amy Allen" collide.
func tokenSignature(sw *store.Songwriter) string {
	tokens := strings.Fields(identity.Normalize(sw.Name))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
