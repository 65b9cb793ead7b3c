package models

import "testing"

func TestReviewValidate(t *testing.T) {
	for _, tt := range []struct {
		rating float64
		ok     bool
	}{{1, true}, {5, true}, {0, false}, {5.5, false}} {
		if err := (Review{Rating: tt.rating}).Validate(); (err == nil) != tt.ok {
			t.Errorf("rating %v: err = %v", tt.rating, err)
		}
	}
}

func TestRatingsRecompute(t *testing.T) {
	var r Ratings
	r.Recompute([]Review{{Rating: 4}, {Rating: 5}, {Rating: 3}})
	if r.Overall != 4 || r.TotalReviews != 3 {
		t.Errorf("ratings = %+v", r)
	}
	r.Recompute(nil)
	if r.Overall != 0 || r.TotalReviews != 0 {
		t.Errorf("empty ratings = %+v", r)
	}
}

func TestCapacityFinalize(t *testing.T) {
	c := Capacity{Total: 10, Booked: 12}
	c.Finalize()
	if c.Available != 0 {
		t.Errorf("available = %d", c.Available)
	}
	c.Booked = 4
	c.Finalize()
	if c.Available != 6 {
		t.Errorf("available = %d", c.Available)
	}
}

func TestSyncGeo(t *testing.T) {
	var l Location
	l.Coordinates.Latitude, l.Coordinates.Longitude = 28.6, 77.2
	l.SyncGeo()
	if l.Geo.Type != "Point" || l.Geo.Coordinates != [2]float64{77.2, 28.6} {
		t.Errorf("geo = %+v", l.Geo)
	}
}

func TestBloodGroupAndEmail(t *testing.T) {
	if !ValidBloodGroup("AB-") || !ValidBloodGroup("") || ValidBloodGroup("C+") {
		t.Error("blood group validation wrong")
	}
	if got := NormalizeEmail("  Asha@Example.COM "); got != "asha@example.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}

func TestTreatmentMatching(t *testing.T) {
	h := Hospital{Treatments: []Treatment{{Name: "Cataract Surgery"}, {Name: "Total Knee Replacement"}, {Name: "Knee Arthroscopy"}}}
	if got := h.TreatmentMatching("KNEE"); got == nil || got.Name != "Total Knee Replacement" {
		t.Errorf("knee = %+v", got)
	}
	if got := h.TreatmentMatching("dialysis"); got != nil {
		t.Errorf("dialysis = %+v", got)
	}
}
