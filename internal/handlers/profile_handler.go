package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/healtrip/healtrip-api/internal/models"
	"github.com/healtrip/healtrip-api/internal/store"
	"github.com/healtrip/healtrip-api/internal/utils"
)

type registerRequest struct {
	ClerkID   string `json:"clerkId" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Country   string `json:"country"`
}

// Register records a user already known to the auth provider. Repeated
// calls for the same provider id return the existing user.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	users := h.Store.Users

	existing, err := users.FindByExternalID(ctx, req.ClerkID)
	if err == nil {
		utils.Success(c, http.StatusOK, existing, "User already registered")
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		utils.Fail(c, utils.Internal("Failed to register user", err))
		return
	}

	u := models.NewUser(req.ClerkID, req.Email, req.FirstName, req.LastName, time.Now())
	u.Phone, u.Country = req.Phone, req.Country
	if err := users.Insert(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			utils.Fail(c, utils.Conflict("An account with this email already exists"))
			return
		}
		utils.Fail(c, utils.Internal("Failed to register user", err))
		return
	}
	h.Log.Info("user registered", zap.String("userId", u.ID.Hex()))
	utils.Success(c, http.StatusCreated, u, "User registered successfully")
}

// currentUser resolves the caller to a local user, creating it on first use.
func (h *Handler) currentUser(c *gin.Context) (*models.User, bool) {
	id, ok := identity(c)
	if !ok {
		return nil, false
	}
	u, err := h.Sync.Resolve(c.Request.Context(), id)
	if err != nil {
		utils.Fail(c, err)
		return nil, false
	}
	return u, true
}

func (h *Handler) GetProfile(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	utils.Success(c, http.StatusOK, u, "Profile fetched successfully")
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req store.ProfileUpdate
	if !bind(c, &req) {
		return
	}
	if req.BloodGroup != nil && *req.BloodGroup != "" && !models.ValidBloodGroup(*req.BloodGroup) {
		utils.Fail(c, utils.Validation("Invalid blood group", *req.BloodGroup))
		return
	}
	updated, err := h.Store.Users.UpdateProfile(c.Request.Context(), u.ID, req)
	if err != nil {
		storeFail(c, err, "User not found")
		return
	}
	utils.Success(c, http.StatusOK, updated, "Profile updated successfully")
}

func (h *Handler) AddMedicalHistory(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	var item models.MedicalHistoryItem
	if !bind(c, &item) {
		return
	}
	if item.Condition == "" {
		utils.Fail(c, utils.Validation("Condition is required"))
		return
	}
	updated, err := h.Store.Users.AddMedicalHistory(c.Request.Context(), u.ID, item)
	if err != nil {
		storeFail(c, err, "User not found")
		return
	}
	utils.Success(c, http.StatusOK, updated.MedicalHistory, "Medical history added successfully")
}

func (h *Handler) AddMedication(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	var m models.Medication
	if !bind(c, &m) {
		return
	}
	if m.Name == "" {
		utils.Fail(c, utils.Validation("Medication name is required"))
		return
	}
	updated, err := h.Store.Users.AddMedication(c.Request.Context(), u.ID, m)
	if err != nil {
		storeFail(c, err, "User not found")
		return
	}
	utils.Success(c, http.StatusOK, updated.Medications, "Medication added successfully")
}

// AddDocument records metadata for a file already stored by the upload service.
func (h *Handler) AddDocument(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	var d models.Document
	if !bind(c, &d) {
		return
	}
	if d.URL == "" {
		utils.Fail(c, utils.Validation("Document URL is required"))
		return
	}
	if d.Name == "" {
		d.Name = "document"
	}
	if d.Type == "" {
		d.Type = "other"
	}
	d.UploadedAt = time.Now()
	updated, err := h.Store.Users.AddDocument(c.Request.Context(), u.ID, d)
	if err != nil {
		storeFail(c, err, "User not found")
		return
	}
	utils.Success(c, http.StatusOK, updated.Documents, "Document uploaded successfully")
}
