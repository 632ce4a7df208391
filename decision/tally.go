// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package decision

import (
	"sort"

	"github.com/danielhkuo/plan-decision/models"
)

// ComputeTally groups votes by restaurant and orders the result by count
// descending, then restaurant id ascending. Candidates without votes are
// included with a zero count. The function is pure: the same ledger snapshot
// and candidate set always produce the same ordering.
func ComputeTally(votes []models.Vote, candidates []int64) models.Tally {
	byRestaurant := make(map[int64]*models.TallyItem, len(candidates))
	for _, id := range candidates {
		byRestaurant[id] = &models.TallyItem{RestaurantID: id, VoterIDs: []int64{}}
	}

	var total int64
	for _, v := range votes {
		item, ok := byRestaurant[v.RestaurantID]
		if !ok {
			item = &models.TallyItem{RestaurantID: v.RestaurantID, VoterIDs: []int64{}}
			byRestaurant[v.RestaurantID] = item
		}
		item.Votes++
		item.VoterIDs = append(item.VoterIDs, v.VoterID)
		total++
	}

	results := make([]models.TallyItem, 0, len(byRestaurant))
	for _, item := range byRestaurant {
		sort.Slice(item.VoterIDs, func(i, j int) bool { return item.VoterIDs[i] < item.VoterIDs[j] })
		results = append(results, *item)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Votes != results[j].Votes {
			return results[i].Votes > results[j].Votes
		}
		return results[i].RestaurantID < results[j].RestaurantID
	})

	return models.Tally{Results: results, TotalVotes: total}
}

// voteCounts is the per-restaurant count without ordering.
func voteCounts(votes []models.Vote) map[int64]int64 {
	counts := make(map[int64]int64)
	for _, v := range votes {
		counts[v.RestaurantID]++
	}
	return counts
}
