package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Recommender calls the hotel, hospital and yoga recommendation services.
type Recommender struct {
	hotelURL    string
	hospitalURL string
	yogaURL     string
	http        *http.Client
}

func NewRecommender(hotelURL, hospitalURL, yogaURL string, timeout time.Duration) *Recommender {
	return &Recommender{
		hotelURL:    strings.TrimRight(hotelURL, "/"),
		hospitalURL: strings.TrimRight(hospitalURL, "/"),
		yogaURL:     strings.TrimRight(yogaURL, "/"),
		http:        &http.Client{Timeout: timeout},
	}
}

type RecommendedHospital struct {
	Name      string  `json:"name"`
	City      string  `json:"city"`
	Rating    float64 `json:"rating"`
	Specialty string  `json:"specialty"`
}

type YogaCenter struct {
	CenterName string    `json:"Center_Name"`
	YogaStyle  string    `json:"Yoga_Style"`
	City       string    `json:"City"`
	Price      PriceText `json:"Price"`
}

type RecommendedHotel struct {
	Name  string  `json:"Hotel_Name"`
	Price float64 `json:"Hotel_Price"`
}

type HotelRecommendations struct {
	Count   int                `json:"count"`
	Results []RecommendedHotel `json:"results"`
}

// PriceText accepts a JSON number or string.
type PriceText string

func (p *PriceText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = PriceText(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		*p = ""
		return nil
	}
	*p = PriceText(fmt.Sprintf("%.0f", f))
	return nil
}

func (r *Recommender) HospitalsByCity(ctx context.Context, city string) ([]RecommendedHospital, error) {
	var out []RecommendedHospital
	err := r.get(ctx, r.hospitalURL+"/hospitals-by-city?city="+url.QueryEscape(city), &out)
	return out, err
}

func (r *Recommender) YogaSessions(ctx context.Context, city string) ([]YogaCenter, error) {
	var out []YogaCenter
	err := r.get(ctx, r.yogaURL+"/api/sessions/yoga?city="+url.QueryEscape(city), &out)
	return out, err
}

func (r *Recommender) Hotels(ctx context.Context, location string) (*HotelRecommendations, error) {
	var out HotelRecommendations
	q := url.Values{"location": {location}, "stars": {"3"}}
	if err := r.get(ctx, r.hotelURL+"/recommend?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Recommender) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Status: resp.StatusCode, Message: "recommendation service error"}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
