package geo

import "testing"

func TestDistanceKMSameCoordinateIsZero(t *testing.T) {
	d := DistanceKM(40.7128, -74.0060, 40.7128, -74.0060)
	if d != 0 {
		t.Fatalf("expected 0 distance for identical coordinates, got %v", d)
	}
}

func TestDistanceKMKnownPair(t *testing.T) {
	// New York to Los Angeles is approximately 3936 km.
	d := DistanceKM(40.7128, -74.0060, 34.0522, -118.2437)
	if d < 3800 || d > 4100 {
		t.Fatalf("NYC-LA haversine distance out of expected range: got %v km", d)
	}
}

// TestScenarioS4 mirrors spec.md scenario S4: insert NYC, LA, London; a
// bbox over [39,-76]x[42,-72] should return NYC; a 50km radius search
// around NYC should return between 1 and 2 points.
func TestScenarioS4(t *testing.T) {
	idx := New()
	idx.Insert("nyc", 40.7128, -74.0060)
	idx.Insert("la", 34.0522, -118.2437)
	idx.Insert("london", 51.5074, -0.1278)

	bboxResults := idx.BBoxSearch(BoundingBox{MinLat: 39, MaxLat: 42, MinLng: -76, MaxLng: -72})
	foundNYC := false
	for _, p := range bboxResults {
		if p.ID == "nyc" {
			foundNYC = true
		}
	}
	if !foundNYC {
		t.Fatalf("expected bbox search to include nyc, got %+v", bboxResults)
	}

	radiusResults := idx.RadiusSearch(40.7128, -74.0060, 50)
	if len(radiusResults) < 1 || len(radiusResults) > 2 {
		t.Fatalf("expected 1-2 points within 50km of NYC, got %d", len(radiusResults))
	}
}

func TestRemoveAndCount(t *testing.T) {
	idx := New()
	idx.Insert("a", 1, 1)
	idx.Insert("b", 2, 2)
	if idx.Count() != 2 {
		t.Fatalf("expected count 2, got %d", idx.Count())
	}
	if !idx.Remove("a") {
		t.Fatal("expected Remove to report true for existing id")
	}
	if idx.Remove("a") {
		t.Fatal("expected Remove to report false for already-removed id")
	}
	if idx.Count() != 1 {
		t.Fatalf("expected count 1 after removal, got %d", idx.Count())
	}
}

func TestUpdateRepositionsPoint(t *testing.T) {
	idx := New()
	idx.Insert("p", 0, 0)
	idx.Update("p", 10, 10)
	results := idx.RadiusSearch(10, 10, 1)
	if len(results) != 1 || results[0].Point.ID != "p" {
		t.Fatalf("expected updated point near (10,10), got %+v", results)
	}
}

func TestGetCandidatesMatchesRadiusSearchIDs(t *testing.T) {
	idx := New()
	idx.Insert("nyc", 40.7128, -74.0060)
	idx.Insert("la", 34.0522, -118.2437)

	candidates := idx.GetCandidates(40.7128, -74.0060, 50)
	if len(candidates) != 1 || candidates[0] != "nyc" {
		t.Fatalf("expected [nyc], got %v", candidates)
	}
	radius := idx.RadiusSearch(40.7128, -74.0060, 50)
	if len(radius) != len(candidates) || radius[0].Point.ID != candidates[0] {
		t.Fatalf("GetCandidates %v disagrees with RadiusSearch %+v", candidates, radius)
	}
}

func TestNilIndexIsSafe(t *testing.T) {
	var idx *Index
	idx.Insert("a", 1, 1)
	if idx.Remove("a") {
		t.Fatal("nil index Remove should report false")
	}
	if idx.Count() != 0 {
		t.Fatal("nil index Count should be 0")
	}
	if idx.RadiusSearch(0, 0, 10) != nil {
		t.Fatal("nil index RadiusSearch should return nil")
	}
	if idx.BBoxSearch(BoundingBox{}) != nil {
		t.Fatal("nil index BBoxSearch should return nil")
	}
	if idx.GetCandidates(0, 0, 10) != nil {
		t.Fatal("nil index GetCandidates should return nil")
	}
}
