package model

import "sort"

// LeaderboardEntry is one row of a session leaderboard
type LeaderboardEntry struct {
	Identity    IdentityID `json:"identity"`
	DisplayName string     `json:"displayName"`
	Role        Role       `json:"role"`
	Score       int        `json:"score"`
	Connected   bool       `json:"connected"`
}

// BuildLeaderboard orders members by score descending. Members with equal
// scores keep the order they were given in, which is join order when the
// members come from storage.
func BuildLeaderboard(members []*Member) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(members))
	for _, m := range members {
		entries = append(entries, LeaderboardEntry{
			Identity:    m.Identity,
			DisplayName: m.DisplayName,
			Role:        m.Role,
			Score:       m.Score,
			Connected:   m.Connected,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}
