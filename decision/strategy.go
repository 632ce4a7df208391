// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package decision

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/danielhkuo/plan-decision/models"
)

// ResolutionInput is everything a strategy may look at. Votes are the ledger
// rows with voted_at <= ClosedAt.
type ResolutionInput struct {
	PlanID     int64
	ToolType   models.ToolType
	Candidates []int64
	Votes      []models.Vote
	ClosedAt   time.Time
	Selection  *int64
}

// Strategy turns a closed plan's inputs into a single winning restaurant.
// Implementations must be deterministic: resolution is re-run after a crash
// and has to reproduce the same winner.
type Strategy interface {
	Resolve(ctx context.Context, in ResolutionInput) (int64, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, in ResolutionInput) (int64, error)

func (f StrategyFunc) Resolve(ctx context.Context, in ResolutionInput) (int64, error) {
	return f(ctx, in)
}

// DefaultStrategies returns the built-in strategy for every tool.
func DefaultStrategies() map[models.ToolType]Strategy {
	return map[models.ToolType]Strategy{
		models.ToolDirect:  StrategyFunc(ResolveDirect),
		models.ToolVote:    StrategyFunc(ResolveVote),
		models.ToolRandom:  StrategyFunc(ResolveRandom),
		models.ToolTourney: StrategyFunc(ResolveTourney),
	}
}

// ResolveDirect returns the manager's selection.
func ResolveDirect(_ context.Context, in ResolutionInput) (int64, error) {
	if in.Selection == nil {
		return 0, ErrNoSelectionProvided
	}
	if !slices.Contains(in.Candidates, *in.Selection) {
		return 0, ErrInvalidCandidate
	}
	return *in.Selection, nil
}

// ResolveVote returns the top entry of the tally over votes for current
// candidates. A plan with no such votes is not decided; the manager falls
// back to an explicit confirmation.
func ResolveVote(_ context.Context, in ResolutionInput) (int64, error) {
	counted := make([]models.Vote, 0, len(in.Votes))
	for _, v := range in.Votes {
		if slices.Contains(in.Candidates, v.RestaurantID) {
			counted = append(counted, v)
		}
	}
	tally := ComputeTally(counted, in.Candidates)
	if tally.TotalVotes == 0 {
		return 0, ErrNoVotesCast
	}
	return tally.Results[0].RestaurantID, nil
}

// ResolveRandom draws uniformly from the candidate set.
func ResolveRandom(_ context.Context, in ResolutionInput) (int64, error) {
	candidates := sortedCandidates(in.Candidates)
	if len(candidates) == 0 {
		return 0, ErrNoCandidates
	}
	rng := seededRand(in.PlanID, in.ClosedAt)
	return candidates[rng.IntN(len(candidates))], nil
}

// ResolveTourney runs a single-elimination bracket over a seeded shuffle of
// the candidates. A match goes to the candidate with more votes; ties are a
// seeded coin flip. An odd candidate out gets a bye, so the bracket finishes
// in ceil(log2(n)) rounds.
func ResolveTourney(_ context.Context, in ResolutionInput) (int64, error) {
	winner, _, err := RunBracket(in)
	return winner, err
}

// RunBracket plays the TOURNEY bracket and also returns the field entering
// each round.
func RunBracket(in ResolutionInput) (int64, [][]int64, error) {
	bracket := sortedCandidates(in.Candidates)
	if len(bracket) == 0 {
		return 0, nil, ErrNoCandidates
	}
	rng := seededRand(in.PlanID, in.ClosedAt)
	rng.Shuffle(len(bracket), func(i, j int) { bracket[i], bracket[j] = bracket[j], bracket[i] })

	counts := voteCounts(in.Votes)
	var rounds [][]int64
	for len(bracket) > 1 {
		rounds = append(rounds, slices.Clone(bracket))
		next := make([]int64, 0, (len(bracket)+1)/2)
		for i := 0; i+1 < len(bracket); i += 2 {
			a, b := bracket[i], bracket[i+1]
			switch {
			case counts[a] > counts[b]:
				next = append(next, a)
			case counts[b] > counts[a]:
				next = append(next, b)
			case rng.IntN(2) == 0:
				next = append(next, a)
			default:
				next = append(next, b)
			}
		}
		if len(bracket)%2 == 1 {
			next = append(next, bracket[len(bracket)-1])
		}
		bracket = next
	}
	rounds = append(rounds, bracket)
	return bracket[0], rounds, nil
}

func sortedCandidates(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// seededRand derives a PCG source from (planID, closedAt) so every re-run
// after a crash draws the same sequence.
func seededRand(planID int64, closedAt time.Time) *rand.Rand {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(planID))
	binary.BigEndian.PutUint64(buf[8:], uint64(closedAt.UTC().UnixMilli()))
	sum := sha256.Sum256(buf[:])
	return rand.New(rand.NewPCG(
		binary.BigEndian.Uint64(sum[:8]),
		binary.BigEndian.Uint64(sum[8:16]),
	))
}
