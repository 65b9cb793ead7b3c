package services

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/healtrip/healtrip-api/internal/models"
	"github.com/healtrip/healtrip-api/internal/utils"
)

// Ranking weights, out of 100.
const (
	ratingWeight      = 40
	priceWeight       = 30
	successRateWeight = 20
	verifiedWeight    = 10

	maxRecommendations = 10
)

// HospitalFinder is the slice of the hospital repository diagnosis needs.
type HospitalFinder interface {
	SearchByTreatment(ctx context.Context, treatment, city, country string, maxPrice float64) ([]models.Hospital, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Hospital, error)
}

// Diagnosis recommends, prices and compares hospitals for a treatment.
type Diagnosis struct {
	hospitals HospitalFinder
	log       *zap.Logger
}

func NewDiagnosis(hospitals HospitalFinder, log *zap.Logger) *Diagnosis {
	return &Diagnosis{hospitals: hospitals, log: log}
}

type DiagnosisLocation struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

type RecommendRequest struct {
	Treatment string             `json:"treatment"`
	Budget    float64            `json:"budget"`
	Location  *DiagnosisLocation `json:"location"`
	Priority  string             `json:"priority"`
}

type Recommendation struct {
	models.Hospital
	RecommendationScore float64 `json:"recommendationScore"`
}

type RecommendResult struct {
	Recommendations []Recommendation `json:"recommendations"`
	TotalFound      int              `json:"totalFound"`
	Criteria        RecommendRequest `json:"criteria"`
}

// recommendationScore weighs rating, price against budget, success rate and
// verification of the treatment at h. Price only counts when a budget is set
// and never goes negative for hospitals above it.
func recommendationScore(h *models.Hospital, treatment string, budget float64) float64 {
	score := h.Ratings.Overall / 5 * ratingWeight
	t := h.TreatmentMatching(treatment)
	if t != nil && budget > 0 {
		score += math.Max(0, 1-t.Pricing.Max/budget) * priceWeight
	}
	if t != nil && t.SuccessRate > 0 {
		score += t.SuccessRate / 100 * successRateWeight
	}
	if h.IsVerified {
		score += verifiedWeight
	}
	return score
}

// rankHospitals scores every hospital, best first; ties keep store order.
func rankHospitals(hospitals []models.Hospital, treatment string, budget float64) []Recommendation {
	out := make([]Recommendation, 0, len(hospitals))
	for i := range hospitals {
		out = append(out, Recommendation{
			Hospital:            hospitals[i],
			RecommendationScore: recommendationScore(&hospitals[i], treatment, budget),
		})
	}
	slices.SortStableFunc(out, func(a, b Recommendation) int {
		return cmp.Compare(b.RecommendationScore, a.RecommendationScore)
	})
	return out
}

func (d *Diagnosis) Recommend(ctx context.Context, req RecommendRequest) (*RecommendResult, error) {
	req.Treatment = strings.TrimSpace(req.Treatment)
	if req.Treatment == "" {
		return nil, utils.Validation("Treatment is required")
	}
	if req.Budget < 0 {
		return nil, utils.Validation("Budget must not be negative")
	}
	city := ""
	if req.Location != nil {
		city = req.Location.City
	}
	found, err := d.hospitals.SearchByTreatment(ctx, req.Treatment, city, "", req.Budget)
	if err != nil {
		return nil, utils.Internal("Failed to generate recommendations", err)
	}
	ranked := rankHospitals(found, req.Treatment, req.Budget)
	return &RecommendResult{
		Recommendations: ranked[:min(maxRecommendations, len(ranked))],
		TotalFound:      len(ranked),
		Criteria:        req,
	}, nil
}

type EstimateRequest struct {
	Treatment string             `json:"treatment"`
	Location  *DiagnosisLocation `json:"location"`
	Duration  string             `json:"duration"`
}

type CostLine struct {
	HospitalName string  `json:"hospitalName"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Currency     string  `json:"currency"`
	Duration     string  `json:"duration,omitempty"`
}

type CostRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Average  float64 `json:"average"`
	Currency string  `json:"currency"`
}

type CostEstimate struct {
	Treatment      string     `json:"treatment"`
	Location       string     `json:"location"`
	Estimate       CostRange  `json:"estimate"`
	Breakdown      []CostLine `json:"breakdown"`
	TotalHospitals int        `json:"totalHospitals"`
}

// estimate summarises every matching treatment offered by hospitals. The
// average is taken over the midpoints of each price range; all figures are
// rounded to whole units.
func estimate(hospitals []models.Hospital, treatment string) (CostRange, []CostLine) {
	needle := strings.ToLower(treatment)
	var lines []CostLine
	for _, h := range hospitals {
		for _, t := range h.Treatments {
			if !strings.Contains(strings.ToLower(t.Name), needle) {
				continue
			}
			lines = append(lines, CostLine{
				HospitalName: h.Name,
				Min:          t.Pricing.Min,
				Max:          t.Pricing.Max,
				Currency:     t.Pricing.Currency,
				Duration:     t.Duration,
			})
		}
	}
	if len(lines) == 0 {
		return CostRange{}, nil
	}
	r := CostRange{Min: math.Inf(1), Max: math.Inf(-1), Currency: lines[0].Currency}
	var mid float64
	for _, l := range lines {
		r.Min = math.Min(r.Min, l.Min)
		r.Max = math.Max(r.Max, l.Max)
		mid += (l.Min + l.Max) / 2
	}
	r.Average = math.Round(mid / float64(len(lines)))
	r.Min, r.Max = math.Round(r.Min), math.Round(r.Max)
	if r.Currency == "" {
		r.Currency = "USD"
	}
	return r, lines
}

func (d *Diagnosis) EstimateCost(ctx context.Context, req EstimateRequest) (*CostEstimate, error) {
	req.Treatment = strings.TrimSpace(req.Treatment)
	if req.Treatment == "" {
		return nil, utils.Validation("Treatment is required")
	}
	country, where := "", "All locations"
	if req.Location != nil && req.Location.Country != "" {
		country, where = req.Location.Country, req.Location.Country
	}
	found, err := d.hospitals.SearchByTreatment(ctx, req.Treatment, "", country, 0)
	if err != nil {
		return nil, utils.Internal("Failed to estimate cost", err)
	}
	rng, lines := estimate(found, req.Treatment)
	if len(lines) == 0 {
		return nil, utils.NotFound("No hospitals found for this treatment")
	}
	return &CostEstimate{
		Treatment:      req.Treatment,
		Location:       where,
		Estimate:       rng,
		Breakdown:      lines,
		TotalHospitals: len(found),
	}, nil
}

type HospitalComparison struct {
	ID            primitive.ObjectID `json:"id"`
	Name          string             `json:"name"`
	Location      models.Location    `json:"location"`
	Ratings       models.Ratings     `json:"ratings"`
	Treatments    []models.Treatment `json:"treatments"`
	Accreditation []string           `json:"accreditation"`
	Facilities    []string           `json:"facilities"`
	IsVerified    bool               `json:"isVerified"`
}

// Compare lays out two or more hospitals side by side in the order asked for.
func (d *Diagnosis) Compare(ctx context.Context, hospitalIDs []string) ([]HospitalComparison, error) {
	var ids []primitive.ObjectID
	for _, raw := range hospitalIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return nil, utils.Validation("Invalid hospital ID", raw)
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) < 2 {
		return nil, utils.Validation("At least 2 hospital IDs are required")
	}
	found, err := d.hospitals.FindByIDs(ctx, ids)
	if err != nil {
		return nil, utils.Internal("Failed to compare hospitals", err)
	}
	if len(found) != len(ids) {
		return nil, utils.NotFound("One or more hospitals not found")
	}
	byID := make(map[primitive.ObjectID]*models.Hospital, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}
	out := make([]HospitalComparison, 0, len(ids))
	for _, id := range ids {
		h, ok := byID[id]
		if !ok {
			return nil, utils.NotFound("One or more hospitals not found")
		}
		out = append(out, HospitalComparison{
			ID:            h.ID,
			Name:          h.Name,
			Location:      h.Location,
			Ratings:       h.Ratings,
			Treatments:    h.Treatments,
			Accreditation: h.Accreditation,
			Facilities:    h.Facilities,
			IsVerified:    h.IsVerified,
		})
	}
	d.log.Debug("hospitals compared", zap.Int("count", len(out)))
	return out, nil
}
