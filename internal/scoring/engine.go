// Package scoring computes the 0-10 unsigned-likelihood score for a track
// or contact. The engine is a pure function of its inputs; persistence and
// display are the caller's concern.
package scoring

import (
	"fmt"
	"sort"
	"strings"
)

// Input carries the known facts about a track or contact. Zero values mean
// "unknown" for the tri-state fields; PublisherKnown gates the publisher
// signal so a missing fact is never scored as an absent publisher.
type Input struct {
	OnDiscoveryPlaylist  bool
	Label                string
	PublisherKnown       bool
	HasPublisher         bool
	HasSongwriterCredits bool
	MetadataCompleteness float64
	DIYDistribution      bool
	UnsignedCollaborators int
}

// Signal is one weighted contribution to the score.
type Signal struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
	Detail string `json:"detail,omitempty"`
}

// Result is the evaluated score with its ranked signal list.
type Result struct {
	Score   int      `json:"score"`
	Signals []Signal `json:"signals"`
	Summary string   `json:"summary"`
}

const (
	weightMajorLabel        = -10
	weightDiscoveryPlaylist = 2
	weightNoPublisher       = 2
	weightIndieLabel        = 1
	weightSongwriterCredits = 1
	weightSparseMetadata    = 1
	weightDIYDistribution   = 2
	weightUnsignedCowriters = 1
)

// sparseMetadataThreshold marks records below it as lacking the metadata a
// label-backed release would carry.
const sparseMetadataThreshold = 0.4

// Evaluate scores the input. Signals are additive and order-independent for
// the total; the major-label negative is evaluated first so the summary can
// never contradict a confirmed signing.
func Evaluate(input Input) Result {
	var signals []Signal

	major := isMajorLabel(input.Label)
	if major {
		signals = append(signals, Signal{
			Name:   "major-label",
			Weight: weightMajorLabel,
			Detail: fmt.Sprintf("confirmed major-label metadata: %s", strings.TrimSpace(input.Label)),
		})
	}

	if input.OnDiscoveryPlaylist {
		signals = append(signals, Signal{
			Name:   "discovery-playlist",
			Weight: weightDiscoveryPlaylist,
			Detail: "appeared on a curated discovery playlist",
		})
	}
	if input.PublisherKnown && !input.HasPublisher {
		signals = append(signals, Signal{
			Name:   "no-publisher",
			Weight: weightNoPublisher,
			Detail: "no publishing entity on record",
		})
	}
	if !major && strings.TrimSpace(input.Label) != "" {
		signals = append(signals, Signal{
			Name:   "indie-label",
			Weight: weightIndieLabel,
			Detail: fmt.Sprintf("independent label: %s", strings.TrimSpace(input.Label)),
		})
	}
	if input.HasSongwriterCredits {
		signals = append(signals, Signal{
			Name:   "songwriter-credits",
			Weight: weightSongwriterCredits,
			Detail: "songwriter credits present in source metadata",
		})
	}
	if input.MetadataCompleteness < sparseMetadataThreshold {
		signals = append(signals, Signal{
			Name:   "sparse-metadata",
			Weight: weightSparseMetadata,
			Detail: "metadata sparseness typical of self-released tracks",
		})
	}
	if input.DIYDistribution {
		signals = append(signals, Signal{
			Name:   "diy-distribution",
			Weight: weightDIYDistribution,
			Detail: "consistent DIY distributor across catalog",
		})
	}
	if input.UnsignedCollaborators > 0 {
		signals = append(signals, Signal{
			Name:   "unsigned-cowriters",
			Weight: weightUnsignedCowriters,
			Detail: fmt.Sprintf("%d unsigned co-writers in portfolio", input.UnsignedCollaborators),
		})
	}

	total := 0
	for _, signal := range signals {
		total += signal.Weight
	}
	score := clamp(total, 0, 10)

	sort.SliceStable(signals, func(i, j int) bool {
		return abs(signals[i].Weight) > abs(signals[j].Weight)
	})

	return Result{
		Score:   score,
		Signals: signals,
		Summary: summarize(score, major),
	}
}

// summarize renders the one-line verdict. The major-label branch wins
// regardless of remaining positive signals.
func summarize(score int, major bool) string {
	if major {
		return "unlikely unsigned: confirmed major-label metadata"
	}
	switch {
	case score >= 7:
		return fmt.Sprintf("strong unsigned candidate (%d/10)", score)
	case score >= 4:
		return fmt.Sprintf("possible unsigned candidate (%d/10)", score)
	default:
		return fmt.Sprintf("weak signal (%d/10)", score)
	}
}

var majorLabelMarkers = []string{
	"universal", "umg", "sony", "columbia", "rca", "epic", "arista",
	"warner", "atlantic", "elektra", "interscope", "republic", "capitol",
	"def jam", "island", "geffen", "motown", "polydor", "emi",
}

func isMajorLabel(label string) bool {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return false
	}
	for _, marker := range majorLabelMarkers {
		if strings.Contains(label, marker) {
			return true
		}
	}
	return false
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

func abs(value int) int {
	if value < 0 {
		return -value
	}
	return value
}
