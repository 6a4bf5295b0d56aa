// Package storetest holds the behavioral suite every ports.GraphStore
// implementation must pass.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/domain/core/entities"
	"github.com/narulaskaran/social-graph/domain/core/valueobjects"
	pkgerrors "github.com/narulaskaran/social-graph/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. The suite closes it when the subtest ends.
type Factory func(t *testing.T) ports.GraphStore

// Run executes every conformance case against stores built by newStore
func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s ports.GraphStore)
	}{
		{"CreateAndGetGraph", testCreateAndGetGraph},
		{"GetUnknownGraph", testGetUnknownGraph},
		{"DeleteUnknownGraph", testDeleteUnknownGraph},
		{"DeleteEmptyGraphIDIsNoop", testDeleteEmptyGraphID},
		{"DeleteGraphCascades", testDeleteGraphCascades},
		{"UpsertProfileDeduplicatesByName", testUpsertProfileDeduplicates},
		{"UpsertProfileUnknownGraph", testUpsertProfileUnknownGraph},
		{"UpsertProfileInvalid", testUpsertProfileInvalid},
		{"ProfileIDCollision", testProfileIDCollision},
		{"SameNameDifferentGraphs", testSameNameDifferentGraphs},
		{"FindProfileByName", testFindProfileByName},
		{"ConnectionCanonicalization", testConnectionCanonicalization},
		{"SelfLoopSkipped", testSelfLoopSkipped},
		{"UpsertConnectionsIdempotent", testUpsertConnectionsIdempotent},
		{"UnknownParticipantRejectsBatch", testUnknownParticipantRejectsBatch},
		{"CrossGraphParticipantRejected", testCrossGraphParticipant},
		{"DeleteConnectionEitherOrder", testDeleteConnectionEitherOrder},
		{"GlobalListings", testGlobalListings},
		{"ApplyBatchRemapsExistingNames", testApplyBatchRemapsExisting},
		{"ApplyBatchRemapsWithinBatch", testApplyBatchRemapsWithinBatch},
		{"ApplyBatchIsAtomic", testApplyBatchAtomic},
		{"ApplyBatchEmpty", testApplyBatchEmpty},
		{"ConcurrentBatchesConverge", testConcurrentBatchesConverge},
		{"ClearDatabase", testClearDatabase},
		{"Ping", testPing},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func ctx() context.Context {
	return context.Background()
}

func mustGraph(t *testing.T, s ports.GraphStore) *entities.Graph {
	t.Helper()
	g, err := s.CreateGraph(ctx())
	require.NoError(t, err)
	require.NotNil(t, g)
	return g
}

func mustProfile(t *testing.T, s ports.GraphStore, graphID, first, last string) entities.Profile {
	t.Helper()
	name, err := valueobjects.NewPersonName(first, last, 0)
	require.NoError(t, err)
	p := entities.NewProfile(graphID, name)
	require.NoError(t, s.UpsertProfile(ctx(), p))
	stored, err := s.FindProfileByName(ctx(), graphID, name)
	require.NoError(t, err)
	require.NotNil(t, stored)
	return *stored
}

func profile(graphID, first, last string) entities.Profile {
	name, _ := valueobjects.NewPersonName(first, last, 0)
	return entities.NewProfile(graphID, name)
}

func testCreateAndGetGraph(t *testing.T, s ports.GraphStore) {
	before := time.Now().Add(-time.Second)
	g := mustGraph(t, s)

	assert.True(t, valueobjects.IsValidGraphID(g.ID))
	assert.True(t, g.CreatedAt.Equal(g.UpdatedAt))
	assert.True(t, g.CreatedAt.After(before))

	got, err := s.GetGraph(ctx(), g.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, g.ID, got.ID)
	assert.WithinDuration(t, g.CreatedAt, got.CreatedAt, time.Millisecond)
	assert.WithinDuration(t, g.UpdatedAt, got.UpdatedAt, time.Millisecond)

	other := mustGraph(t, s)
	assert.NotEqual(t, g.ID, other.ID)
}

func testGetUnknownGraph(t *testing.T, s ports.GraphStore) {
	got, err := s.GetGraph(ctx(), "Zz9zZz9zZz9z")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testDeleteUnknownGraph(t *testing.T, s ports.GraphStore) {
	assert.NoError(t, s.DeleteGraph(ctx(), "Zz9zZz9zZz9z"))
}

func testDeleteEmptyGraphID(t *testing.T, s ports.GraphStore) {
	g := mustGraph(t, s)
	a := mustProfile(t, s, g.ID, "Alice", "Smith")
	b := mustProfile(t, s, g.ID, "Bob", "Jones")
	c, _ := entities.NewConnection(a.ID, b.ID, g.ID)
	require.NoError(t, s.UpsertConnection(ctx(), c))

	require.NoError(t, s.DeleteGraph(ctx(), ""))

	got, err := s.GetGraph(ctx(), g.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
	profiles, err := s.GetProfiles(ctx(), g.ID)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
	conns, err := s.GetConnections(ctx(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, []entities.Connection{c}, conns)
}

func testDeleteGraphCascades(t *testing.T, s ports.GraphStore) {
	doomed := mustGraph(t, s)
	kept := mustGraph(t, s)

	a := mustProfile(t, s, doomed.ID, "Alice", "Smith")
	b := mustProfile(t, s, doomed.ID, "Bob", "Jones")
	c, _ := entities.NewConnection(a.ID, b.ID, doomed.ID)
	require.NoError(t, s.UpsertConnection(ctx(), c))

	x := mustProfile(t, s, kept.ID, "Alice", "Smith")
	y := mustProfile(t, s, kept.ID, "Bob", "Jones")
	keptConn, _ := entities.NewConnection(x.ID, y.ID, kept.ID)
	require.NoError(t, s.UpsertConnection(ctx(), keptConn))

	require.NoError(t, s.DeleteGraph(ctx(), doomed.ID))

	got, err := s.GetGraph(ctx(), doomed.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	profiles, err := s.GetProfiles(ctx(), doomed.ID)
	require.NoError(t, err)
	assert.Empty(t, profiles)

	conns, err := s.GetConnections(ctx(), doomed.ID)
	require.NoError(t, err)
	assert.Empty(t, conns)

	gone, err := s.GetProfile(ctx(), a.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	profiles, err = s.GetProfiles(ctx(), kept.ID)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
	conns, err = s.GetConnections(ctx(), kept.ID)
	require.NoError(t, err)
	assert.Equal(t, []entities.Connection{keptConn}, conns)
}

func testUpsertProfileDeduplicates(t *testing.T, s ports.GraphStore) {
	g := mustGraph(t, s)
	first := profile(g.ID, "Alice", "Smith")
	second := profile(g.ID, "Alice", "Smith")

	require.NoError(t, s.UpsertProfile(ctx(), first))
	require.NoError(t, s.UpsertProfile(ctx(), second))
	require.NoError(t, s.UpsertProfiles(ctx(), []entities.Profile{first, second}))

	profiles, err := s.GetProfiles(ctx(), g.ID)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, first, profiles[0])

	got, err := s.GetProfile(ctx(), first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first, *got)

	missing, err := s.GetProfile(ctx(), second.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testUpsertProfileUnknownGraph(t *testing.T, s ports.GraphStore) {
	err := s.UpsertProfile(ctx(), profile("Zz9zZz9zZz9z", "Alice", "Smith"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err), "got %v", err)
}

func testUpsertProfileInvalid(t *testing.T, s ports.GraphStore) {
	g := mustGraph(t, s)
	err := s.UpsertProfile(ctx(), entities.Profile{ID: "x", FirstName: "", LastName: "Smith", GraphID: g.ID})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err), "got %v", err)
}

func testProfileIDCollision(t *testing.T, s ports.GraphStore) {
	g := mustGraph(t, s)
	a := mustProfile(t, s, g.ID, "Alice", "Smith")

	err := s.UpsertProfile(ctx(), entities.Profile{ID: a.ID, FirstName: "Zed", LastName: "Quinn", GraphID: g.ID})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err), "got %v", err)

	profiles, err := s.GetProfiles(ctx(), g.ID)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func testSameNameDifferentGraphs(t *testing.T, s ports.GraphStore) {
	g1 := mustGraph(t, s)
	g2 := mustGraph(t, s)

	p1 := mustProfile(t, s, g1.ID, "Alice", "Smith")
	p2 := mustProfile(t, s, g2.ID, "Alice", "Smith")
	assert.NotEqual(t, p1.ID, p2.ID)

	for _, g := range []*entities.Graph{g1, g2} {
		profiles, err := s.GetProfiles(ctx(), g.ID)
		require.NoError(t, err)
		assert.Len(t, profiles, 1)
	}
}

func testFindProfileByName(t *testing.T, s ports.GraphStore) {
	g := mustGraph(t, s)
	a := mustProfile(t, s, g.ID, "Alice", "Smith")

	name, _ := valueobjects.NewPersonName("Alice", "Smith", 0)
	got, err := s.FindProfileByName(ctx(), g.ID, name)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)

	other, _ := valueobjects.NewPersonName("alice", "smith", 0)
	got, err = s.FindProfileByName(ctx(), g.ID, other)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testConnectionCanonicalization(t *testing.T, s ports.GraphStore) {
	g := mustGraph(t, s)
	a := mustProfile(t, s, g.ID, "Alice", "Smith")
	b := mustProfile(t, s, g.ID, "Bob", "Jones")
	lo, hi := a.ID, b.ID
	if hi < lo {
		lo, hi = hi, lo
	}

	require.NoError(t, s.UpsertConnection(ctx(), entities.Connection{ProfileAID: hi, ProfileBID: lo, GraphID: g.ID}))
	require.NoError(t, s.UpsertConnection(ctx(), entities.Connection{ProfileAID: lo, ProfileBID: hi, GraphID: g.ID}))

	conns, err := s.GetConnections(ctx(), g.ID)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, entities.Connection{ProfileAID: lo, ProfileBID: hi, GraphID: g.ID}, conns[0])
}

func testSelfLoopSkipped(t *testing.T, s ports.GraphStore) {
	g := mustGraph(t, s)
	a := mustProfile(t, s, g.ID, "Alice", "Smith")

	require.NoError(t, s.UpsertConnection(ctx(), entities.Connection{ProfileAID: a.ID, ProfileBID: a.ID, GraphID: g.ID}))

	conns, err := s.GetConnections(ctx(), g.ID)
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func testUpsertConnectionsIdempotent(t *testing.T, s ports.GraphStore) {
	g := mustGraph(t, s)
	a := mustProfile(t, s, g.ID, "Alice", "Smith")
	b := mustProfile(t, s, g.ID, "Bob", "Jones")
	c := mustProfile(t, s, g.ID, "Carol", "Lee")

	batch := []entities.Connection{
		{ProfileAID: a.ID, ProfileBID: b.ID, GraphID: g.ID},
		{ProfileAID: b.ID, ProfileBID: a.ID, GraphID: g.ID},
		{ProfileAID: c.ID, ProfileBID: a.ID, GraphID: g.ID},
	}
	require.NoError(t, s.UpsertConnections(ctx(), batch))
	require.NoError(t, s.UpsertConnections(ctx(), batch))

	conns, err := s.GetConnections(ctx(), g.ID)
	require.NoError(t, err)
	assert.Len(t, conns, 2)
	for _, conn := range conns {
		assert.True(t, conn.IsCanonical())
	}
}

func testUnknownParticipantRejectsBatch(t *testing.T, s ports.GraphStore) {
	g := mustGraph(t, s)
	a := mustProfile(t, s, g.ID, "Alice", "Smith")
	b := mustProfile(t, s, g.ID, "Bob", "Jones")

	err := s.UpsertConnections(ctx(), []entities.Connection{
		{ProfileAID: a.ID, ProfileBID: b.ID, GraphID: g.ID},
		{ProfileAID: a.ID, ProfileBID: "no-such-profile", GraphID: g.ID},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err), "got %v", err)

	conns, err := s.GetConnections(ctx(), g.ID)
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func testCrossGraphParticipant(t *testing.T, s ports.GraphStore) {
	g1 := mustGraph(t, s)
	g2 := mustGraph(t, s)
	a := mustProfile(t, s, g1.ID, "Alice", "Smith")
	b := mustProfile(t, s, g2.ID, "Bob", "Jones")

	err := s.UpsertConnection(ctx(), entities.Connection{ProfileAID: a.ID, ProfileBID: b.ID, GraphID: g1.ID})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err), "got %v", err)
}

func testDeleteConnectionEitherOrder(t *testing.T, s ports.GraphStore) {
	g := mustGraph(t, s)
	a := mustProfile(t, s, g.ID, "Alice", "Smith")
	b := mustProfile(t, s, g.ID, "Bob", "Jones")
	c := mustProfile(t, s, g.ID, "Carol", "Lee")

	require.NoError(t, s.UpsertConnections(ctx(), []entities.Connection{
		{ProfileAID: a.ID, ProfileBID: b.ID, GraphID: g.ID},
		{ProfileAID: a.ID, ProfileBID: c.ID, GraphID: g.ID},
	}))

	lo, hi := a.ID, b.ID
	if hi < lo {
		lo, hi = hi, lo
	}
	require.NoError(t, s.DeleteConnection(ctx(), hi, lo, g.ID))

	conns, err := s.GetConnections(ctx(), g.ID)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.True(t, conns[0].Involves(c.ID))

	require.NoError(t, s.DeleteConnection(ctx(), hi, lo, g.ID))
	require.NoError(t, s.DeleteConnection(ctx(), a.ID, c.ID, "Zz9zZz9zZz9z"))

	conns, err = s.GetConnections(ctx(), g.ID)
	require.NoError(t, err)
	assert.Len(t, conns, 1)
}

func testGlobalListings(t *testing.T, s ports.GraphStore) {
	g1 := mustGraph(t, s)
	g2 := mustGraph(t, s)
	a := mustProfile(t, s, g1.ID, "Alice", "Smith")
	b := mustProfile(t, s, g1.ID, "Bob", "Jones")
	x := mustProfile(t, s, g2.ID, "Xavier", "Young")
	y := mustProfile(t, s, g2.ID, "Yara", "Zane")

	require.NoError(t, s.UpsertConnection(ctx(), entities.Connection{ProfileAID: a.ID, ProfileBID: b.ID, GraphID: g1.ID}))
	require.NoError(t, s.UpsertConnection(ctx(), entities.Connection{ProfileAID: x.ID, ProfileBID: y.ID, GraphID: g2.ID}))

	profiles, err := s.GetProfiles(ctx(), "")
	require.NoError(t, err)
	assert.Len(t, profiles, 4)
	for i := 1; i < len(profiles); i++ {
		assert.Less(t, profiles[i-1].ID, profiles[i].ID)
	}

	conns, err := s.GetConnections(ctx(), "")
	require.NoError(t, err)
	assert.Len(t, conns, 2)
}

func testApplyBatchRemapsExisting(t *testing.T, s ports.GraphStore) {
	g := mustGraph(t, s)
	alice := mustProfile(t, s, g.ID, "Alice", "Smith")

	proposedAlice := profile(g.ID, "Alice", "Smith")
	bob := profile(g.ID, "Bob", "Jones")

	result, err := s.ApplyBatch(ctx(), ports.Batch{
		Profiles:    []entities.Profile{proposedAlice, bob},
		Connections: []entities.Connection{{ProfileAID: proposedAlice.ID, ProfileBID: bob.ID, GraphID: g.ID}},
	})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, result.Resolve(proposedAlice.ID))
	assert.Equal(t, bob.ID, result.Resolve(bob.ID))
	assert.Equal(t, 1, result.ProfilesCreated)
	assert.Equal(t, 1, result.ConnectionsCreated)

	want, _ := entities.NewConnection(alice.ID, bob.ID, g.ID)
	conns, err := s.GetConnections(ctx(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, []entities.Connection{want}, conns)
}

func testApplyBatchRemapsWithinBatch(t *testing.T, s ports.GraphStore) {
	g := mustGraph(t, s)
	first := profile(g.ID, "Carol", "Lee")
	second := profile(g.ID, "Carol", "Lee")

	result, err := s.ApplyBatch(ctx(), ports.Batch{
		Profiles:    []entities.Profile{first, second},
		Connections: []entities.Connection{{ProfileAID: first.ID, ProfileBID: second.ID, GraphID: g.ID}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProfilesCreated)
	assert.Equal(t, 0, result.ConnectionsCreated)
	assert.Equal(t, first.ID, result.Resolve(second.ID))

	conns, err := s.GetConnections(ctx(), g.ID)
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func testApplyBatchAtomic(t *testing.T, s ports.GraphStore) {
	g := mustGraph(t, s)
	dana := profile(g.ID, "Dana", "Scully")

	_, err := s.ApplyBatch(ctx(), ports.Batch{
		Profiles:    []entities.Profile{dana},
		Connections: []entities.Connection{{ProfileAID: dana.ID, ProfileBID: "ghost", GraphID: g.ID}},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err), "got %v", err)

	profiles, err := s.GetProfiles(ctx(), g.ID)
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func testApplyBatchEmpty(t *testing.T, s ports.GraphStore) {
	result, err := s.ApplyBatch(ctx(), ports.Batch{})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Zero(t, result.ProfilesCreated)
	assert.Zero(t, result.ConnectionsCreated)
}

// testConcurrentBatchesConverge submits the same names from several writers.
// Stores that report lost races as conflicts are retried here, which is what
// the ingestion service does.
func testConcurrentBatchesConverge(t *testing.T, s ports.GraphStore) {
	g := mustGraph(t, s)
	const writers = 6

	var wg sync.WaitGroup
	resolved := make([][2]string, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for attempt := 0; attempt < 10; attempt++ {
				eve := profile(g.ID, "Eve", "Moneypenny")
				finn := profile(g.ID, "Finn", "Mertens")
				result, err := s.ApplyBatch(ctx(), ports.Batch{
					Profiles:    []entities.Profile{eve, finn},
					Connections: []entities.Connection{{ProfileAID: eve.ID, ProfileBID: finn.ID, GraphID: g.ID}},
				})
				if pkgerrors.IsConflict(err) {
					time.Sleep(time.Duration(attempt+1) * 5 * time.Millisecond)
					continue
				}
				errs[i] = err
				if err == nil {
					resolved[i] = [2]string{result.Resolve(eve.ID), result.Resolve(finn.ID)}
				}
				return
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, resolved[0], resolved[i])
	}

	profiles, err := s.GetProfiles(ctx(), g.ID)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)

	conns, err := s.GetConnections(ctx(), g.ID)
	require.NoError(t, err)
	assert.Len(t, conns, 1)
}

func testClearDatabase(t *testing.T, s ports.GraphStore) {
	g := mustGraph(t, s)
	a := mustProfile(t, s, g.ID, "Alice", "Smith")
	b := mustProfile(t, s, g.ID, "Bob", "Jones")
	require.NoError(t, s.UpsertConnection(ctx(), entities.Connection{ProfileAID: a.ID, ProfileBID: b.ID, GraphID: g.ID}))

	require.NoError(t, s.ClearDatabase(ctx()))

	got, err := s.GetGraph(ctx(), g.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	profiles, err := s.GetProfiles(ctx(), "")
	require.NoError(t, err)
	assert.Empty(t, profiles)

	conns, err := s.GetConnections(ctx(), "")
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func testPing(t *testing.T, s ports.GraphStore) {
	assert.NoError(t, s.Ping(ctx()))
}
