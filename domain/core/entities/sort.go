package entities

import "sort"

// SortProfiles orders profiles by id
func SortProfiles(profiles []Profile) {
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
}

// SortConnections orders connections by (profile_a_id, profile_b_id, graph_id)
func SortConnections(conns []Connection) {
	sort.Slice(conns, func(i, j int) bool {
		a, b := conns[i], conns[j]
		if a.ProfileAID != b.ProfileAID {
			return a.ProfileAID < b.ProfileAID
		}
		if a.ProfileBID != b.ProfileBID {
			return a.ProfileBID < b.ProfileBID
		}
		return a.GraphID < b.GraphID
	})
}
