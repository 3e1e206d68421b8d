package store

import (
	"context"
	"errors"
	"math"
	"testing"
)

func seedNode(t *testing.T, db *DB, id string, stamps ...int64) []*Location {
	t.Helper()
	ctx := context.Background()
	if _, err := db.EnsureNode(ctx, id, ""); err != nil {
		t.Fatalf("EnsureNode: %v", err)
	}
	var locs []*Location
	for i, ts := range stamps {
		locs = append(locs, &Location{NodeID: id, Lat: float64(i), Lon: float64(i), Timestamp: ts})
	}
	if err := db.InsertLocations(ctx, locs); err != nil {
		t.Fatalf("InsertLocations: %v", err)
	}
	return locs
}

func TestInsertLocationGeneratesID(t *testing.T) {
	db := testDB(t)
	locs := seedNode(t, db, "n1", 10)

	if locs[0].ID == "" {
		t.Fatal("expected generated ID")
	}
	got, err := db.GetLocation(context.Background(), locs[0].ID)
	if err != nil {
		t.Fatalf("GetLocation: %v", err)
	}
	if got.Timestamp != 10 || got.NodeID != "n1" {
		t.Errorf("got %+v", got)
	}
	if got.Score.IsSet() {
		t.Errorf("Score = %v, want unset", got.Score)
	}
}

func TestRecentLocationsNewestFirst(t *testing.T) {
	db := testDB(t)
	seedNode(t, db, "n1", 10, 30, 20, 40)

	recent, err := db.RecentLocations(context.Background(), "n1", 2)
	if err != nil {
		t.Fatalf("RecentLocations: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len = %d, want 2", len(recent))
	}
	if recent[0].Timestamp != 40 || recent[1].Timestamp != 30 {
		t.Errorf("timestamps = %d, %d; want 40, 30", recent[0].Timestamp, recent[1].Timestamp)
	}
}

func TestRecentLocationsTiesPreferLatestInsert(t *testing.T) {
	db := testDB(t)
	locs := seedNode(t, db, "n1", 5, 5)

	recent, err := db.RecentLocations(context.Background(), "n1", 1)
	if err != nil {
		t.Fatalf("RecentLocations: %v", err)
	}
	if recent[0].ID != locs[1].ID {
		t.Errorf("newest = %s, want %s", recent[0].ID, locs[1].ID)
	}
}

func TestRecentLocationsEmptyNode(t *testing.T) {
	db := testDB(t)
	seedNode(t, db, "n1")

	recent, err := db.RecentLocations(context.Background(), "n1", 2)
	if err != nil {
		t.Fatalf("RecentLocations: %v", err)
	}
	if recent == nil || len(recent) != 0 {
		t.Errorf("recent = %v, want empty non-nil slice", recent)
	}
}

func TestRecentLocationsUnknownNode(t *testing.T) {
	db := testDB(t)

	_, err := db.RecentLocations(context.Background(), "ghost", 2)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateScores(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	locs := seedNode(t, db, "n1", 1, 2, 3)

	err := db.UpdateScores(ctx, map[string]Score{
		locs[0].ID: Unremovable(),
		locs[1].ID: AreaScore(0.5),
	})
	if err != nil {
		t.Fatalf("UpdateScores: %v", err)
	}

	all, err := db.ListLocations(ctx, "n1", 0)
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if all[0].Score.Kind != ScoreUnremovable {
		t.Errorf("first score = %v, want inf", all[0].Score)
	}
	if all[1].Score != AreaScore(0.5) {
		t.Errorf("second score = %v, want 0.5", all[1].Score)
	}
	if all[2].Score.IsSet() {
		t.Errorf("third score = %v, want unset", all[2].Score)
	}
}

func TestUpdateScoresMissingRollsBack(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	locs := seedNode(t, db, "n1", 1)

	err := db.UpdateScores(ctx, map[string]Score{
		locs[0].ID: AreaScore(2),
		"gone":     AreaScore(3),
	})
	if !errors.Is(err, ErrConflictOrMissing) {
		t.Fatalf("err = %v, want ErrConflictOrMissing", err)
	}

	got, err := db.GetLocation(ctx, locs[0].ID)
	if err != nil {
		t.Fatalf("GetLocation: %v", err)
	}
	if got.Score.IsSet() {
		t.Errorf("score = %v, want rollback to unset", got.Score)
	}
}

func TestUpdateScoreSingle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	locs := seedNode(t, db, "n1", 1)

	if err := db.UpdateScore(ctx, locs[0].ID, AreaScore(1.25)); err != nil {
		t.Fatalf("UpdateScore: %v", err)
	}
	got, _ := db.GetLocation(ctx, locs[0].ID)
	if got.Score.Float() != 1.25 {
		t.Errorf("score = %v, want 1.25", got.Score)
	}
}

func TestScoreFloat(t *testing.T) {
	if !math.IsInf(Unremovable().Float(), 1) {
		t.Error("unremovable should render as +Inf")
	}
	if !math.IsNaN(Score{}.Float()) {
		t.Error("unset should render as NaN")
	}
	if Unremovable().String() != "inf" {
		t.Errorf("String = %q", Unremovable().String())
	}
}

func TestListLocationsLimit(t *testing.T) {
	db := testDB(t)
	seedNode(t, db, "n1", 3, 1, 2)

	locs, err := db.ListLocations(context.Background(), "n1", 2)
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if len(locs) != 2 || locs[0].Timestamp != 1 || locs[1].Timestamp != 2 {
		t.Errorf("locs = %+v", locs)
	}
}

func TestInsertLocationDuplicateID(t *testing.T) {
	db := testDB(t)
	locs := seedNode(t, db, "n1", 10)

	dup := &Location{ID: locs[0].ID, NodeID: "n1", Lat: 1, Lon: 1, Timestamp: 20}
	err := db.InsertLocation(context.Background(), dup)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("a duplicate is not an availability failure")
	}
}

func TestInsertLocationUnknownNode(t *testing.T) {
	db := testDB(t)
	err := db.InsertLocation(context.Background(), &Location{NodeID: "ghost", Lat: 1, Lon: 1, Timestamp: 1})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestInsertLocationsAtomic(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedNode(t, db, "n1")

	locs := []*Location{
		{ID: "same", NodeID: "n1", Lat: 1, Lon: 1, Timestamp: 1},
		{ID: "same", NodeID: "n1", Lat: 2, Lon: 2, Timestamp: 2},
	}
	if err := db.InsertLocations(ctx, locs); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	count, err := db.CountLocations(ctx, "n1")
	if err != nil {
		t.Fatalf("CountLocations: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 after rollback", count)
	}
}
