package reconcile

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/tmkontra/syncify/internal/shared"
	itesting "github.com/tmkontra/syncify/internal/testing"
)

func newTestReconciler(catalog *itesting.MockCatalog) *Reconciler {
	return New(catalog, shared.NewLogger(io.Discard))
}

func uris(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("spotify:track:%03d", i)
	}
	return out
}

func TestCleanLocalName(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Road Trip.m3u", "Road Trip"},
		{"Road Trip.m3u8", "Road Trip"},
		{"/playlists/Road Trip.m3u", "Road Trip"},
		{"mix.pls", "mix"},
		{"tracks.txt", "tracks"},
		{"Road Trip", "Road Trip"},
	}
	for _, tc := range cases {
		if got := CleanLocalName(tc.input); got != tc.want {
			t.Errorf("CleanLocalName(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestMatchName(t *testing.T) {
	cfg := DefaultNameMatchConfig()

	cases := []struct {
		name   string
		local  string
		remote string
		want   MatchKind
	}{
		{"exact", "Road Trip", "Road Trip", MatchExact},
		{"suffix strips extension", "Road Trip.m3u", "Road Trip", MatchSuffix},
		{"both sides cleaned", "Road Trip.m3u", "Road Trip.txt", MatchSuffix},
		{"similar", "Road Trip", "Road Trop", MatchSimilar},
		{"unrelated", "Road Trip", "Workout", MatchNone},
		{"trailing digit guard blocks", "List1", "List4", MatchNone},
		{"long base not guarded", "Summer Playlist 1", "Summer Playlist 4", MatchSimilar},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MatchName(tc.local, tc.remote, cfg); got != tc.want {
				t.Errorf("MatchName(%q, %q) = %v, want %v", tc.local, tc.remote, got, tc.want)
			}
		})
	}
}

func TestReconcileCreate(t *testing.T) {
	catalog := itesting.NewMockCatalog()
	r := newTestReconciler(catalog)

	report, err := r.Reconcile(context.Background(), "Road Trip.m3u", uris(150))
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.Action != ActionCreate {
		t.Errorf("action = %v, want create", report.Action)
	}
	if report.Added != 150 || report.AddFailed != 0 {
		t.Errorf("added = %d, failed = %d", report.Added, report.AddFailed)
	}

	p, ok := catalog.Playlists[report.PlaylistID]
	if !ok {
		t.Fatal("created playlist not found")
	}
	if p.Name != "Road Trip" {
		t.Errorf("playlist name = %q, want clean local name", p.Name)
	}
	if len(p.TrackURIs) != 150 {
		t.Errorf("playlist has %d tracks, want 150", len(p.TrackURIs))
	}

	// 150 URIs must split into a full batch and a remainder.
	want := []string{
		"create:Road Trip",
		"add:" + report.PlaylistID + ":100",
		"add:" + report.PlaylistID + ":50",
	}
	if len(catalog.Mutations) != len(want) {
		t.Fatalf("mutations = %v", catalog.Mutations)
	}
	for i, m := range want {
		if catalog.Mutations[i] != m {
			t.Errorf("mutation[%d] = %q, want %q", i, catalog.Mutations[i], m)
		}
	}
}

func TestReconcileUpdate(t *testing.T) {
	t.Run("adds only missing tracks", func(t *testing.T) {
		catalog := itesting.NewMockCatalog()
		p := catalog.AddPlaylist("Chill", uris(2))
		r := newTestReconciler(catalog)

		report, err := r.Reconcile(context.Background(), "Chill", uris(3))
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if report.Action != ActionUpdate || report.PlaylistID != p.ID {
			t.Errorf("unexpected report %+v", report)
		}
		if report.Added != 1 {
			t.Errorf("added = %d, want 1", report.Added)
		}
		if len(catalog.Playlists[p.ID].TrackURIs) != 3 {
			t.Errorf("playlist has %d tracks, want 3", len(catalog.Playlists[p.ID].TrackURIs))
		}
	})

	t.Run("extras reported not removed by default", func(t *testing.T) {
		catalog := itesting.NewMockCatalog()
		p := catalog.AddPlaylist("Chill", uris(5))
		r := newTestReconciler(catalog)

		report, err := r.Reconcile(context.Background(), "Chill", uris(3))
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if len(report.ExtraTracks) != 2 || report.Removed != 0 {
			t.Errorf("extras = %v, removed = %d", report.ExtraTracks, report.Removed)
		}
		if len(catalog.Playlists[p.ID].TrackURIs) != 5 {
			t.Error("default mode must not remove extras")
		}
	})

	t.Run("extras removed when enabled", func(t *testing.T) {
		catalog := itesting.NewMockCatalog()
		p := catalog.AddPlaylist("Chill", uris(5))
		r := newTestReconciler(catalog)
		r.RemoveExtras = true

		report, err := r.Reconcile(context.Background(), "Chill", uris(3))
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if report.Removed != 2 {
			t.Errorf("removed = %d, want 2", report.Removed)
		}
		if len(catalog.Playlists[p.ID].TrackURIs) != 3 {
			t.Errorf("playlist has %d tracks, want 3", len(catalog.Playlists[p.ID].TrackURIs))
		}
	})

	t.Run("suffix match renames", func(t *testing.T) {
		catalog := itesting.NewMockCatalog()
		p := catalog.AddPlaylist("Chill.m3u", uris(3))
		r := newTestReconciler(catalog)

		if _, err := r.Reconcile(context.Background(), "Chill", uris(3)); err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if catalog.Playlists[p.ID].Name != "Chill" {
			t.Errorf("playlist name = %q, want renamed", catalog.Playlists[p.ID].Name)
		}
	})

	t.Run("failed batch counted not fatal", func(t *testing.T) {
		catalog := itesting.NewMockCatalog()
		catalog.AddPlaylist("Chill", uris(2))
		catalog.FailMutations = true
		r := newTestReconciler(catalog)

		report, err := r.Reconcile(context.Background(), "Chill", uris(3))
		if err != nil {
			t.Fatalf("Reconcile should tolerate batch failure, got %v", err)
		}
		if report.Added != 0 || report.AddFailed != 1 {
			t.Errorf("added = %d, failed = %d, want 0/1", report.Added, report.AddFailed)
		}
	})
}

func TestReconcileDuplicates(t *testing.T) {
	t.Run("keeps closest track count", func(t *testing.T) {
		catalog := itesting.NewMockCatalog()
		smaller := catalog.AddPlaylist("Road Trip", uris(40))
		keeper := catalog.AddPlaylist("Road Trip.m3u", uris(42))
		r := newTestReconciler(catalog)

		report, err := r.Reconcile(context.Background(), "Road Trip.m3u", uris(42))
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if report.Action != ActionMerge {
			t.Errorf("action = %v, want merge", report.Action)
		}
		if report.PlaylistID != keeper.ID {
			t.Errorf("kept %s, want the 42-track playlist", report.PlaylistID)
		}
		if _, ok := catalog.Playlists[smaller.ID]; ok {
			t.Error("duplicate playlist should be deleted")
		}
		if catalog.Playlists[keeper.ID].Name != "Road Trip" {
			t.Errorf("keeper name = %q, want %q", catalog.Playlists[keeper.ID].Name, "Road Trip")
		}
		if len(catalog.Playlists[keeper.ID].TrackURIs) != 42 {
			t.Errorf("keeper has %d tracks, want 42", len(catalog.Playlists[keeper.ID].TrackURIs))
		}
	})

	t.Run("folds extra content into keeper", func(t *testing.T) {
		catalog := itesting.NewMockCatalog()
		keeper := catalog.AddPlaylist("Mix", uris(10))
		dup := catalog.AddPlaylist("Mix.m3u", append(uris(5), "spotify:track:only-here"))
		r := newTestReconciler(catalog)

		report, err := r.Reconcile(context.Background(), "Mix", uris(10))
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if report.PlaylistID != keeper.ID {
			t.Fatalf("kept %s, want %s", report.PlaylistID, keeper.ID)
		}
		if _, ok := catalog.Playlists[dup.ID]; ok {
			t.Error("duplicate playlist should be deleted")
		}

		var found bool
		for _, uri := range catalog.Playlists[keeper.ID].TrackURIs {
			if uri == "spotify:track:only-here" {
				found = true
			}
		}
		if !found {
			t.Error("duplicate's unique track should be folded into keeper")
		}
	})

	t.Run("read-only flags instead of deleting", func(t *testing.T) {
		catalog := itesting.NewMockCatalog()
		catalog.AddPlaylist("Road Trip", uris(40))
		catalog.AddPlaylist("Road Trip.m3u", uris(42))
		r := newTestReconciler(catalog)
		r.ReadOnly = true

		report, err := r.Reconcile(context.Background(), "Road Trip.m3u", uris(42))
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if len(report.FlaggedPlaylists) != 1 || len(report.MergedPlaylists) != 0 {
			t.Errorf("flagged = %v, merged = %v", report.FlaggedPlaylists, report.MergedPlaylists)
		}
		if len(catalog.Mutations) != 0 {
			t.Errorf("read-only mode mutated: %v", catalog.Mutations)
		}
		if len(catalog.Playlists) != 2 {
			t.Error("read-only mode must leave both playlists")
		}
	})
}

func TestReconcileIdempotence(t *testing.T) {
	catalog := itesting.NewMockCatalog()
	catalog.AddPlaylist("Road Trip", uris(40))
	catalog.AddPlaylist("Road Trip.m3u", uris(42))
	r := newTestReconciler(catalog)

	if _, err := r.Reconcile(context.Background(), "Road Trip.m3u", uris(42)); err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}

	catalog.Mutations = nil
	report, err := r.Reconcile(context.Background(), "Road Trip.m3u", uris(42))
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}
	if len(catalog.Mutations) != 0 {
		t.Errorf("second run mutated: %v", catalog.Mutations)
	}
	if report.Added != 0 || report.Removed != 0 {
		t.Errorf("second run reported changes: %+v", report)
	}
}

func TestReconcileSimilarOnly(t *testing.T) {
	catalog := itesting.NewMockCatalog()
	catalog.AddPlaylist("Road Trop", uris(10))
	r := newTestReconciler(catalog)

	report, err := r.Reconcile(context.Background(), "Road Trip", uris(10))
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.Action != ActionNone {
		t.Errorf("action = %v, want none", report.Action)
	}
	if len(report.SimilarNames) != 1 || report.SimilarNames[0] != "Road Trop" {
		t.Errorf("similar = %v", report.SimilarNames)
	}
	if len(catalog.Mutations) != 0 {
		t.Errorf("similar-only match must not mutate: %v", catalog.Mutations)
	}
}

func TestCollapseDuplicateTracks(t *testing.T) {
	catalog := itesting.NewMockCatalog()
	track := uris(2)
	p := catalog.AddPlaylist("Chill", []string{track[0], track[0], track[1]})
	r := newTestReconciler(catalog)

	report, err := r.Reconcile(context.Background(), "Chill", uris(2))
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.DuplicateTracks != 1 {
		t.Errorf("duplicate tracks = %d, want 1", report.DuplicateTracks)
	}

	count := 0
	for _, uri := range catalog.Playlists[p.ID].TrackURIs {
		if uri == track[0] {
			count++
		}
	}
	if count != 1 {
		t.Errorf("track appears %d times, want 1", count)
	}
	if report.Added != 0 {
		t.Errorf("collapse must not count as added, got %d", report.Added)
	}
}

func TestExtraTracks(t *testing.T) {
	catalog := itesting.NewMockCatalog()
	p := catalog.AddPlaylist("Chill", append(uris(3), "spotify:track:stray"))
	r := newTestReconciler(catalog)

	extras, err := r.ExtraTracks(context.Background(), p.ID, uris(3))
	if err != nil {
		t.Fatalf("ExtraTracks failed: %v", err)
	}
	if len(extras) != 1 || extras[0] != "spotify:track:stray" {
		t.Errorf("extras = %v", extras)
	}

	if len(catalog.Mutations) != 0 {
		t.Errorf("audit must not mutate: %v", catalog.Mutations)
	}
}
