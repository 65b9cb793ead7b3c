package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/healtrip/healtrip-api/internal/models"
	"github.com/healtrip/healtrip-api/internal/store"
	"github.com/healtrip/healtrip-api/internal/utils"
)

// storeFail maps repository errors onto the response envelope.
func storeFail(c *gin.Context, err error, notFound string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.Fail(c, utils.NotFound(notFound))
	case errors.Is(err, store.ErrDuplicate):
		utils.Fail(c, utils.Conflict("Resource already exists"))
	default:
		utils.Fail(c, err)
	}
}

func objectID(c *gin.Context, param, what string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		utils.Fail(c, utils.Validation("Invalid "+what+" ID"))
		return primitive.NilObjectID, false
	}
	return id, true
}

type reviewRequest struct {
	Rating    float64 `json:"rating" binding:"required"`
	Comment   string  `json:"comment"`
	Treatment string  `json:"treatment"`
}

// review builds a validated review from the body for the caller.
func review(c *gin.Context) (models.Review, bool) {
	id, ok := identity(c)
	if !ok {
		return models.Review{}, false
	}
	var req reviewRequest
	if !bind(c, &req) {
		return models.Review{}, false
	}
	rv := models.Review{
		UserID:    id.ExternalID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		Treatment: req.Treatment,
		CreatedAt: time.Now(),
	}
	if err := rv.Validate(); err != nil {
		utils.Fail(c, utils.Validation(err.Error()))
		return models.Review{}, false
	}
	return rv, true
}

func fields(c *gin.Context) (map[string]any, bool) {
	var f map[string]any
	if !bind(c, &f) {
		return nil, false
	}
	if len(f) == 0 {
		utils.Fail(c, utils.Validation("No update fields provided"))
		return nil, false
	}
	return f, true
}

// --- hospitals ---

func (h *Handler) ListHospitals(c *gin.Context) {
	p := page(c, 10)
	list, total, err := h.Store.Hospitals.List(c.Request.Context(), store.HospitalQuery{
		City:      c.Query("city"),
		Country:   c.Query("country"),
		Treatment: c.Query("treatment"),
		MinRating: queryFloat(c, "minRating"),
	}, p)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, paged(list, total, p), "Hospitals fetched successfully")
}

func (h *Handler) GetHospital(c *gin.Context) {
	id, ok := objectID(c, "id", "hospital")
	if !ok {
		return
	}
	hosp, err := h.Store.Hospitals.FindByID(c.Request.Context(), id)
	if err != nil {
		storeFail(c, err, "Hospital not found")
		return
	}
	utils.Success(c, http.StatusOK, hosp, "Hospital fetched successfully")
}

func (h *Handler) SearchHospitalsByTreatment(c *gin.Context) {
	treatment := c.Query("treatment")
	if treatment == "" {
		utils.Fail(c, utils.Validation("Treatment name is required"))
		return
	}
	list, err := h.Store.Hospitals.SearchByTreatment(c.Request.Context(), treatment,
		c.Query("city"), c.Query("country"), queryFloat(c, "maxPrice"))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, list, "Hospitals found")
}

func (h *Handler) NearbyHospitals(c *gin.Context) {
	if c.Query("lat") == "" || c.Query("lng") == "" {
		utils.Fail(c, utils.Validation("Latitude and longitude are required"))
		return
	}
	maxKm := queryFloat(c, "maxDistance")
	if maxKm <= 0 {
		maxKm = 50
	}
	list, err := h.Store.Hospitals.Nearby(c.Request.Context(), queryFloat(c, "lat"), queryFloat(c, "lng"), maxKm)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, list, "Nearby hospitals found")
}

func (h *Handler) ReviewHospital(c *gin.Context) {
	id, ok := objectID(c, "id", "hospital")
	if !ok {
		return
	}
	rv, ok := review(c)
	if !ok {
		return
	}
	hosp, err := h.Store.Hospitals.AddReview(c.Request.Context(), id, rv)
	if err != nil {
		storeFail(c, err, "Hospital not found")
		return
	}
	utils.Success(c, http.StatusOK, hosp.Ratings, "Review added successfully")
}

func (h *Handler) CreateHospital(c *gin.Context) {
	var hosp models.Hospital
	if !bind(c, &hosp) {
		return
	}
	if err := h.Store.Hospitals.Create(c.Request.Context(), &hosp); err != nil {
		storeFail(c, err, "Hospital not found")
		return
	}
	utils.Success(c, http.StatusCreated, hosp, "Hospital created successfully")
}

func (h *Handler) UpdateHospital(c *gin.Context) {
	id, ok := objectID(c, "id", "hospital")
	if !ok {
		return
	}
	f, ok := fields(c)
	if !ok {
		return
	}
	hosp, err := h.Store.Hospitals.Update(c.Request.Context(), id, f)
	if err != nil {
		storeFail(c, err, "Hospital not found")
		return
	}
	utils.Success(c, http.StatusOK, hosp, "Hospital updated successfully")
}

// --- hotels ---

func (h *Handler) ListHotels(c *gin.Context) {
	p := page(c, 10)
	list, total, err := h.Store.Hotels.List(c.Request.Context(), store.HotelQuery{
		City:                 c.Query("city"),
		Country:              c.Query("country"),
		MinRating:            queryFloat(c, "minRating"),
		WheelchairAccessible: c.Query("wheelchairAccessible") == "true",
	}, p)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, paged(list, total, p), "Hotels fetched successfully")
}

func (h *Handler) GetHotel(c *gin.Context) {
	id, ok := objectID(c, "id", "hotel")
	if !ok {
		return
	}
	hotel, err := h.Store.Hotels.FindByID(c.Request.Context(), id)
	if err != nil {
		storeFail(c, err, "Hotel not found")
		return
	}
	utils.Success(c, http.StatusOK, hotel, "Hotel fetched successfully")
}

func (h *Handler) HotelsNearHospital(c *gin.Context) {
	id, ok := objectID(c, "hospitalId", "hospital")
	if !ok {
		return
	}
	list, err := h.Store.Hotels.NearHospital(c.Request.Context(), id, c.Query("recoveryFriendly") == "true")
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, list, "Hotels near hospital fetched successfully")
}

func (h *Handler) RecoveryFriendlyHotels(c *gin.Context) {
	list, err := h.Store.Hotels.RecoveryFriendly(c.Request.Context(), c.Query("city"), c.Query("country"))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, list, "Recovery-friendly hotels fetched successfully")
}

func (h *Handler) ReviewHotel(c *gin.Context) {
	id, ok := objectID(c, "id", "hotel")
	if !ok {
		return
	}
	rv, ok := review(c)
	if !ok {
		return
	}
	hotel, err := h.Store.Hotels.AddReview(c.Request.Context(), id, rv)
	if err != nil {
		storeFail(c, err, "Hotel not found")
		return
	}
	utils.Success(c, http.StatusOK, hotel.Ratings, "Review added successfully")
}

func (h *Handler) CreateHotel(c *gin.Context) {
	var hotel models.Hotel
	if !bind(c, &hotel) {
		return
	}
	if err := h.Store.Hotels.Create(c.Request.Context(), &hotel); err != nil {
		storeFail(c, err, "Hotel not found")
		return
	}
	utils.Success(c, http.StatusCreated, hotel, "Hotel created successfully")
}

func (h *Handler) UpdateHotel(c *gin.Context) {
	id, ok := objectID(c, "id", "hotel")
	if !ok {
		return
	}
	f, ok := fields(c)
	if !ok {
		return
	}
	hotel, err := h.Store.Hotels.Update(c.Request.Context(), id, f)
	if err != nil {
		storeFail(c, err, "Hotel not found")
		return
	}
	utils.Success(c, http.StatusOK, hotel, "Hotel updated successfully")
}

// --- wellness ---

func (h *Handler) ListWellness(c *gin.Context) {
	p := page(c, 10)
	q := store.WellnessQuery{
		Type:    models.WellnessType(c.Query("type")),
		City:    c.Query("city"),
		Country: c.Query("country"),
	}
	if s := c.Query("startDate"); s != "" {
		from, err := time.Parse("2006-01-02", s)
		if err != nil {
			utils.Fail(c, utils.Validation("Invalid startDate, use YYYY-MM-DD"))
			return
		}
		q.From = &from
	}
	list, total, err := h.Store.Wellness.List(c.Request.Context(), q, p)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, paged(list, total, p), "Wellness sessions fetched successfully")
}

func (h *Handler) GetWellness(c *gin.Context) {
	id, ok := objectID(c, "id", "session")
	if !ok {
		return
	}
	s, err := h.Store.Wellness.FindByID(c.Request.Context(), id)
	if err != nil {
		storeFail(c, err, "Wellness session not found")
		return
	}
	utils.Success(c, http.StatusOK, s, "Wellness session fetched successfully")
}

func (h *Handler) BookWellness(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req struct {
		Participants int    `json:"participants"`
		Notes        string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&req)
	res, err := h.Bookings.BookWellnessSession(c.Request.Context(), id, c.Param("id"), req.Participants, req.Notes)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, res, "Session booked successfully")
}

func (h *Handler) ReviewWellness(c *gin.Context) {
	id, ok := objectID(c, "id", "session")
	if !ok {
		return
	}
	rv, ok := review(c)
	if !ok {
		return
	}
	s, err := h.Store.Wellness.AddReview(c.Request.Context(), id, rv)
	if err != nil {
		storeFail(c, err, "Wellness session not found")
		return
	}
	utils.Success(c, http.StatusOK, s.Ratings, "Review added successfully")
}

func (h *Handler) CreateWellness(c *gin.Context) {
	var s models.WellnessSession
	if !bind(c, &s) {
		return
	}
	if err := h.Store.Wellness.Create(c.Request.Context(), &s); err != nil {
		storeFail(c, err, "Wellness session not found")
		return
	}
	utils.Success(c, http.StatusCreated, s, "Wellness session created successfully")
}

func (h *Handler) UpdateWellness(c *gin.Context) {
	id, ok := objectID(c, "id", "session")
	if !ok {
		return
	}
	f, ok := fields(c)
	if !ok {
		return
	}
	s, err := h.Store.Wellness.Update(c.Request.Context(), id, f)
	if err != nil {
		storeFail(c, err, "Wellness session not found")
		return
	}
	utils.Success(c, http.StatusOK, s, "Wellness session updated successfully")
}

// --- flights and cabs ---

func (h *Handler) SearchFlights(c *gin.Context) {
	var date time.Time
	if s := c.Query("date"); s != "" {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			utils.Fail(c, utils.Validation("Invalid date, use YYYY-MM-DD"))
			return
		}
		date = d
	}
	list, err := h.Store.Flights.Search(c.Request.Context(), c.Query("from"), c.Query("to"), date)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, list, "Flights fetched successfully")
}

func (h *Handler) GetFlight(c *gin.Context) {
	id, ok := objectID(c, "id", "flight")
	if !ok {
		return
	}
	f, err := h.Store.Flights.FindByID(c.Request.Context(), id)
	if err != nil {
		storeFail(c, err, "Flight not found")
		return
	}
	utils.Success(c, http.StatusOK, f, "Flight fetched successfully")
}

func (h *Handler) SearchCabs(c *gin.Context) {
	list, err := h.Store.Cabs.Search(c.Request.Context(), c.Query("location"), c.Query("type"))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, list, "Cabs fetched successfully")
}

func (h *Handler) GetCab(c *gin.Context) {
	id, ok := objectID(c, "id", "cab")
	if !ok {
		return
	}
	cab, err := h.Store.Cabs.FindByID(c.Request.Context(), id)
	if err != nil {
		storeFail(c, err, "Cab not found")
		return
	}
	utils.Success(c, http.StatusOK, cab, "Cab fetched successfully")
}
