package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/healtrip/healtrip-api/internal/services"
	"github.com/healtrip/healtrip-api/internal/utils"
)

func (h *Handler) RecommendHospitals(c *gin.Context) {
	var req services.RecommendRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.Diagnosis.Recommend(c.Request.Context(), req)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, res, "Recommendations generated successfully")
}

func (h *Handler) EstimateCost(c *gin.Context) {
	var req services.EstimateRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.Diagnosis.EstimateCost(c.Request.Context(), req)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, res, "Cost estimation completed")
}

func (h *Handler) CompareHospitals(c *gin.Context) {
	var req struct {
		HospitalIDs []string `json:"hospitalIds"`
	}
	if !bind(c, &req) {
		return
	}
	res, err := h.Diagnosis.Compare(c.Request.Context(), req.HospitalIDs)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, res, "Hospital comparison completed")
}
