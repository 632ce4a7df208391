// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/plan-decision/db"
	"github.com/danielhkuo/plan-decision/decision"
	"github.com/danielhkuo/plan-decision/models"
	"github.com/danielhkuo/plan-decision/store"
	"github.com/danielhkuo/plan-decision/testutil"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(testutil.SetupTestDB(t), db.TypeSQLite, nil)
}

func mustTransition(t *testing.T, name string, ok bool, err error, want bool) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if ok != want {
		t.Fatalf("%s won = %v, want %v", name, ok, want)
	}
}

func TestCreateAndGetDecision(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	d, err := s.CreateDecision(ctx, 1, 100)
	if err != nil {
		t.Fatal(err)
	}
	if d.PlanID != 1 || d.CreatedBy != 100 || d.Status != models.StatusOpen || d.Version != 0 {
		t.Errorf("unexpected record: %+v", d)
	}
	if d.ToolType != nil || d.StartedAt != nil || d.ClosedAt != nil || d.FinalRestaurantID != nil {
		t.Errorf("OPEN record has optional fields set: %+v", d)
	}

	if _, err := s.CreateDecision(ctx, 1, 100); !errors.Is(err, decision.ErrAlreadyExists) {
		t.Errorf("duplicate create: error = %v, want ErrAlreadyExists", err)
	}
	if _, err := s.GetDecision(ctx, 2); !errors.Is(err, decision.ErrPlanNotFound) {
		t.Errorf("missing plan: error = %v, want ErrPlanNotFound", err)
	}
}

func TestTransitionsAreConditional(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := s.CreateDecision(ctx, 1, 100); err != nil {
		t.Fatal(err)
	}

	ok, err := s.CloseVoting(ctx, 1, now, nil)
	mustTransition(t, "close while OPEN", ok, err, false)

	ok, err = s.StartVoting(ctx, 1, models.ToolVote, now)
	mustTransition(t, "start voting", ok, err, true)
	ok, err = s.StartVoting(ctx, 1, models.ToolRandom, now)
	mustTransition(t, "second start", ok, err, false)

	ok, err = s.Decide(ctx, 1, 10)
	mustTransition(t, "decide while VOTING", ok, err, false)

	ok, err = s.CloseVoting(ctx, 1, now, nil)
	mustTransition(t, "close voting", ok, err, true)
	ok, err = s.CloseVoting(ctx, 1, now, nil)
	mustTransition(t, "second close", ok, err, false)

	ok, err = s.Cancel(ctx, 1, now)
	mustTransition(t, "cancel while CLOSED", ok, err, false)

	ok, err = s.Decide(ctx, 1, 10)
	mustTransition(t, "decide", ok, err, true)
	ok, err = s.Decide(ctx, 1, 20)
	mustTransition(t, "second decide", ok, err, false)

	d, err := s.GetDecision(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != models.StatusDecided || *d.FinalRestaurantID != 10 || d.Tool() != models.ToolVote {
		t.Errorf("unexpected record: %+v", d)
	}
	if d.Version != 3 {
		t.Errorf("version = %d, want 3", d.Version)
	}
	testutil.AssertInvariants(t, d)
}

func TestTimestampsRoundTripAtMillisecondPrecision(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	started := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.FixedZone("X", 3600))

	if _, err := s.CreateDecision(ctx, 1, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StartVoting(ctx, 1, models.ToolVote, started); err != nil {
		t.Fatal(err)
	}

	d, err := s.GetDecision(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !d.StartedAt.Equal(started.Truncate(time.Millisecond)) {
		t.Errorf("started_at = %v, want %v", d.StartedAt, started.Truncate(time.Millisecond))
	}
	if d.StartedAt.Location() != time.UTC {
		t.Errorf("started_at location = %v, want UTC", d.StartedAt.Location())
	}
}

func TestCloseVotingCoversLedger(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := s.CreateDecision(ctx, 1, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StartVoting(ctx, 1, models.ToolVote, now); err != nil {
		t.Fatal(err)
	}

	// a vote stamped after the closer read its clock
	late := now.Add(5 * time.Second)
	if _, _, err := s.UpsertVote(ctx, models.Vote{PlanID: 1, VoterID: 1, RestaurantID: 10, VotedAt: late}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CloseVoting(ctx, 1, now, nil); err != nil {
		t.Fatal(err)
	}

	d, err := s.GetDecision(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if d.ClosedAt.Before(late.Truncate(time.Millisecond)) {
		t.Errorf("closed_at %v precedes accepted vote at %v", d.ClosedAt, late)
	}
	votes, err := s.ListVotes(ctx, 1, d.ClosedAt)
	if err != nil {
		t.Fatal(err)
	}
	if len(votes) != 1 {
		t.Errorf("closed ledger has %d votes, want 1", len(votes))
	}
}

func TestCloseVotingKeepsEveryAcceptedVote(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := s.CreateDecision(ctx, 1, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StartVoting(ctx, 1, models.ToolVote, now); err != nil {
		t.Fatal(err)
	}

	const voters = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []int64
	)
	for i := int64(1); i <= voters; i++ {
		wg.Add(1)
		go func(voter int64) {
			defer wg.Done()
			// stamped after the closer read its clock
			v := models.Vote{PlanID: 1, VoterID: voter, RestaurantID: 10, VotedAt: now.Add(time.Duration(voter) * time.Millisecond)}
			_, _, err := s.UpsertVote(ctx, v)
			if errors.Is(err, decision.ErrVotingClosed) {
				return
			}
			if err != nil {
				t.Errorf("voter %d: %v", voter, err)
				return
			}
			mu.Lock()
			accepted = append(accepted, voter)
			mu.Unlock()
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := s.CloseVoting(ctx, 1, now, nil); err != nil {
			t.Errorf("close: %v", err)
		}
	}()
	wg.Wait()

	d, err := s.GetDecision(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != models.StatusClosed {
		t.Fatalf("status = %s, want CLOSED", d.Status)
	}
	counted, err := s.ListVotes(ctx, 1, d.ClosedAt)
	if err != nil {
		t.Fatal(err)
	}
	if len(counted) != len(accepted) {
		t.Errorf("resolution sees %d votes, %d were accepted", len(counted), len(accepted))
	}
	all, err := s.ListVotes(ctx, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(accepted) {
		t.Errorf("ledger has %d votes, %d were accepted", len(all), len(accepted))
	}
}

func TestCloseVotingRecordsSelection(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := s.CreateDecision(ctx, 1, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StartVoting(ctx, 1, models.ToolDirect, now); err != nil {
		t.Fatal(err)
	}
	selection := int64(20)
	ok, err := s.CloseVoting(ctx, 1, now, &selection)
	mustTransition(t, "close with selection", ok, err, true)

	d, err := s.GetDecision(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if d.Selection == nil || *d.Selection != 20 {
		t.Errorf("selection = %v, want 20", d.Selection)
	}
	if !d.ClosedAt.Equal(now.Truncate(time.Millisecond)) {
		t.Errorf("closed_at = %v, want %v", d.ClosedAt, now.Truncate(time.Millisecond))
	}
}

func TestUpsertVote(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := s.CreateDecision(ctx, 1, 100); err != nil {
		t.Fatal(err)
	}

	vote := models.Vote{PlanID: 1, VoterID: 5, RestaurantID: 10, VotedAt: now}
	if _, _, err := s.UpsertVote(ctx, vote); !errors.Is(err, decision.ErrVotingClosed) {
		t.Fatalf("vote while OPEN: error = %v, want ErrVotingClosed", err)
	}

	if _, err := s.StartVoting(ctx, 1, models.ToolVote, now); err != nil {
		t.Fatal(err)
	}

	_, replaced, err := s.UpsertVote(ctx, vote)
	if err != nil {
		t.Fatal(err)
	}
	if replaced {
		t.Error("first vote reported as replaced")
	}

	vote.RestaurantID = 20
	vote.VotedAt = now.Add(time.Second)
	got, replaced, err := s.UpsertVote(ctx, vote)
	if err != nil {
		t.Fatal(err)
	}
	if !replaced {
		t.Error("second vote not reported as replaced")
	}
	if !got.VotedAt.Equal(vote.VotedAt.Truncate(time.Millisecond)) {
		t.Errorf("voted_at = %v, want %v", got.VotedAt, vote.VotedAt.Truncate(time.Millisecond))
	}

	votes, err := s.ListVotes(ctx, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(votes) != 1 || votes[0].RestaurantID != 20 {
		t.Errorf("ledger = %+v, want one row for restaurant 20", votes)
	}

	if _, err := s.CloseVoting(ctx, 1, now.Add(2*time.Second), nil); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.UpsertVote(ctx, models.Vote{PlanID: 1, VoterID: 6, RestaurantID: 10, VotedAt: now}); !errors.Is(err, decision.ErrVotingClosed) {
		t.Errorf("vote while CLOSED: error = %v, want ErrVotingClosed", err)
	}
}

func TestListVotesUpTo(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Now()

	if _, err := s.CreateDecision(ctx, 1, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StartVoting(ctx, 1, models.ToolVote, base); err != nil {
		t.Fatal(err)
	}
	for i := int64(1); i <= 3; i++ {
		v := models.Vote{PlanID: 1, VoterID: i, RestaurantID: 10, VotedAt: base.Add(time.Duration(i) * time.Second)}
		if _, _, err := s.UpsertVote(ctx, v); err != nil {
			t.Fatal(err)
		}
	}

	cutoff := base.Add(2 * time.Second)
	votes, err := s.ListVotes(ctx, 1, &cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if len(votes) != 2 || votes[0].VoterID != 1 || votes[1].VoterID != 2 {
		t.Errorf("votes up to cutoff = %+v, want voters 1 and 2", votes)
	}
}

func TestResolveLease(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := s.CreateDecision(ctx, 1, 100); err != nil {
		t.Fatal(err)
	}
	ok, err := s.AcquireResolveLease(ctx, 1, "a", now, now.Add(time.Minute))
	mustTransition(t, "lease while OPEN", ok, err, false)

	if _, err := s.StartVoting(ctx, 1, models.ToolRandom, now); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CloseVoting(ctx, 1, now, nil); err != nil {
		t.Fatal(err)
	}

	ok, err = s.AcquireResolveLease(ctx, 1, "a", now, now.Add(time.Minute))
	mustTransition(t, "acquire", ok, err, true)
	ok, err = s.AcquireResolveLease(ctx, 1, "b", now, now.Add(time.Minute))
	mustTransition(t, "acquire held lease", ok, err, false)
	ok, err = s.AcquireResolveLease(ctx, 1, "a", now, now.Add(2*time.Minute))
	mustTransition(t, "renew own lease", ok, err, true)

	pending, err := s.ListClosedUnresolved(ctx, now, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("leased plan listed as unresolved: %v", pending)
	}

	later := now.Add(3 * time.Minute)
	pending, err = s.ListClosedUnresolved(ctx, later, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Errorf("expired lease not listed: %v", pending)
	}
	ok, err = s.AcquireResolveLease(ctx, 1, "b", later, later.Add(time.Minute))
	mustTransition(t, "take over expired lease", ok, err, true)

	if err := s.ReleaseResolveLease(ctx, 1, "a"); err != nil {
		t.Fatal(err)
	}
	ok, err = s.AcquireResolveLease(ctx, 1, "c", later, later.Add(time.Minute))
	mustTransition(t, "stale release must not free b's lease", ok, err, false)

	if err := s.ReleaseResolveLease(ctx, 1, "b"); err != nil {
		t.Fatal(err)
	}
	ok, err = s.AcquireResolveLease(ctx, 1, "c", later, later.Add(time.Minute))
	mustTransition(t, "acquire released lease", ok, err, true)
}

func TestRecordSelection(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := s.CreateDecision(ctx, 1, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StartVoting(ctx, 1, models.ToolDirect, now); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CloseVoting(ctx, 1, now, nil); err != nil {
		t.Fatal(err)
	}

	ok, err := s.RecordSelection(ctx, 1, 20)
	mustTransition(t, "record selection", ok, err, true)
	ok, err = s.RecordSelection(ctx, 1, 30)
	mustTransition(t, "overwrite selection", ok, err, false)

	d, err := s.GetDecision(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if d.Selection == nil || *d.Selection != 20 {
		t.Errorf("selection = %v, want 20", d.Selection)
	}
}

func TestListVotingStartedBefore(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Now()

	for id := int64(1); id <= 3; id++ {
		if _, err := s.CreateDecision(ctx, id, 100); err != nil {
			t.Fatal(err)
		}
		if _, err := s.StartVoting(ctx, id, models.ToolVote, base.Add(time.Duration(id)*time.Minute)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Cancel(ctx, 1, base); err != nil {
		t.Fatal(err)
	}

	ids, err := s.ListVotingStartedBefore(ctx, base.Add(2*time.Minute), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Errorf("ids = %v, want [2]", ids)
	}
}
