package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"songscout/internal/config"
	"songscout/internal/logging"
	"songscout/internal/store"
)

// Match binds one candidate name from a credit string to a stored profile.
type Match struct {
	Candidate  string
	Songwriter *store.Songwriter
	Confidence store.ConfidenceSource
}

// Resolver maps credit strings to songwriter profiles through the tiered
// matching stack and persists the resulting track links.
type Resolver struct {
	store           *store.Store
	minSharedTokens int
	logger          *slog.Logger
}

// NewResolver builds a resolver with the configured fuzzy-match policy.
func NewResolver(st *store.Store, cfg config.Identity, logger *slog.Logger) *Resolver {
	minShared := cfg.MinSharedTokens
	if minShared < 2 {
		minShared = 2
	}
	return &Resolver{
		store:           st,
		minSharedTokens: minShared,
		logger:          logging.NewComponentLogger(logger, "identity"),
	}
}

// ResolveTrack splits the track's raw songwriter credits, matches each
// candidate through the tier stack, and persists one idempotent link per
// match. Candidates with no match produce no link and no profile; profile
// creation belongs to the contact-population flow with its uniqueness
// checks.
func (r *Resolver) ResolveTrack(ctx context.Context, track *store.Track) ([]Match, error) {
	candidates := SplitCreditsConservative(track.SongwriterRaw)
	if len(candidates) == 0 {
		return nil, nil
	}

	var matches []Match
	for _, candidate := range candidates {
		match, err := r.resolveCandidate(ctx, track, candidate)
		if err != nil {
			return nil, err
		}
		if match == nil {
			r.logger.Debug("no profile matched candidate",
				logging.Int64(logging.FieldTrackID, track.ID),
				logging.String(logging.FieldSongwriter, candidate))
			continue
		}

		link := store.TrackSongwriter{
			TrackID:      track.ID,
			SongwriterID: match.Songwriter.ID,
			Confidence:   match.Confidence,
			SourceText:   candidate,
		}
		if err := r.store.LinkTrackSongwriter(ctx, link); err != nil {
			return nil, fmt.Errorf("link candidate %q: %w", candidate, err)
		}
		r.maybeRecordAlias(ctx, match)
		matches = append(matches, *match)
	}
	return matches, nil
}

// resolveCandidate runs the tier stack for one candidate name. First
// success wins.
func (r *Resolver) resolveCandidate(ctx context.Context, track *store.Track, candidate string) (*Match, error) {
	// Tier 1: verified external-artist identity on the track itself.
	if track.ExternalArtistID != "" && nameMatchesLoosely(track.ExternalArtistName, candidate) {
		profile, err := r.store.FindSongwriterByExternalID(ctx, track.ExternalArtistID)
		if err != nil {
			return nil, err
		}
		if profile != nil {
			return &Match{Candidate: candidate, Songwriter: profile, Confidence: store.ConfidenceExactID}, nil
		}
	}

	// Tier 2: case-insensitive exact name.
	profile, err := r.store.FindSongwriterByName(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return &Match{Candidate: candidate, Songwriter: profile, Confidence: store.ConfidenceExactName}, nil
	}

	// Tier 3: normalized token match against the indexed pre-filter.
	normalized := Normalize(candidate)
	if normalized != "" {
		profiles, err := r.store.SongwritersByNormalized(ctx, normalized)
		if err != nil {
			return nil, err
		}
		for _, p := range profiles {
			if r.tokensAgree(candidate, p.Name) {
				return &Match{Candidate: candidate, Songwriter: p, Confidence: store.ConfidenceNormalizedFuzzy}, nil
			}
		}
	}

	// Tier 4: stored alias. A hit reuses the exact-name tier because an
	// alias is a previously-confirmed mapping.
	alias, err := r.store.AliasByNormalized(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if alias != nil {
		profile, err := r.store.GetSongwriter(ctx, alias.SongwriterID)
		if err != nil {
			return nil, err
		}
		if profile != nil {
			return &Match{Candidate: candidate, Songwriter: profile, Confidence: store.ConfidenceExactName}, nil
		}
	}

	return nil, nil
}

// tokensAgree applies the structural check behind the fuzzy tier. A plain
// similarity ratio is not enough on its own; short distinct names overlap
// too easily.
func (r *Resolver) tokensAgree(candidate, profileName string) bool {
	candidateTokens := tokens(candidate)
	profileTokens := tokens(profileName)
	if len(candidateTokens) == 0 || len(profileTokens) == 0 {
		return false
	}
	if len(candidateTokens) == 1 || len(profileTokens) == 1 {
		return len(candidateTokens) == 1 && len(profileTokens) == 1 &&
			candidateTokens[0] == profileTokens[0]
	}
	return sharedTokenCount(candidate, profileName) >= r.minSharedTokens
}

// maybeRecordAlias stores the candidate surface form as an alias when the
// match came from the fuzzy tier, or from the external-identity tier with a
// differing stored name. An existing alias for a different profile is left
// alone and the conflict logged; ambiguity is resolved by a human, never
// here.
func (r *Resolver) maybeRecordAlias(ctx context.Context, match *Match) {
	surfaceDiffers := !strings.EqualFold(match.Candidate, match.Songwriter.Name)
	fuzzyTier := match.Confidence == store.ConfidenceNormalizedFuzzy
	externalWithNewSurface := match.Confidence == store.ConfidenceExactID && surfaceDiffers
	if !fuzzyTier && !externalWithNewSurface {
		return
	}

	err := r.store.InsertAlias(ctx, match.Songwriter.ID, match.Candidate, Normalize(match.Candidate))
	if err == nil {
		return
	}
	if errors.Is(err, store.ErrAliasConflict) {
		r.logger.Warn("alias conflict, keeping existing mapping",
			logging.String(logging.FieldSongwriter, match.Candidate),
			logging.Int64("profile_id", match.Songwriter.ID),
			logging.Error(err))
		return
	}
	r.logger.Warn("alias insert failed",
		logging.String(logging.FieldSongwriter, match.Candidate),
		logging.Error(err))
}

// nameMatchesLoosely reports case-insensitive equality or containment in
// either direction.
func nameMatchesLoosely(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}
