package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/healtrip/healtrip-api/internal/middleware"
	"github.com/healtrip/healtrip-api/internal/services"
	"github.com/healtrip/healtrip-api/internal/utils"
)

type createOrderRequest struct {
	BookingID     string `json:"bookingId"`
	PaymentMethod string `json:"paymentMethod"`
}

func (h *Handler) CreatePaymentOrder(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req createOrderRequest
	if !bind(c, &req) {
		return
	}
	order, err := h.Bookings.CreatePaymentOrder(c.Request.Context(), id, req.BookingID, req.PaymentMethod,
		c.GetHeader(middleware.IdempotencyHeader))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, order, "Payment order created successfully")
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req services.VerifyInput
	if !bind(c, &req) {
		return
	}
	b, err := h.Bookings.VerifyPayment(c.Request.Context(), id, req, c.GetHeader(middleware.IdempotencyHeader))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, b, "Payment verified successfully")
}

type bookPackageRequest struct {
	PackageData   *services.PackageData `json:"packageData"`
	PaymentMethod string                `json:"paymentMethod"`
}

func (h *Handler) BookPackage(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req bookPackageRequest
	if !bind(c, &req) {
		return
	}
	b, err := h.Bookings.CreatePackageBooking(c.Request.Context(), id, req.PackageData, req.PaymentMethod)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, b, "Package booked successfully")
}

func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	b, err := h.Bookings.GetBooking(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, b, "Booking details fetched successfully")
}

func (h *Handler) MyBookings(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	res, err := h.Bookings.GetUserBookings(c.Request.Context(), id, c.Query("status"), page(c, 10))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, res, "Bookings fetched successfully")
}

// ExportBookings streams the caller's bookings as an xlsx statement.
func (h *Handler) ExportBookings(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	list, err := h.Bookings.AllUserBookings(c.Request.Context(), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	f, err := services.BookingStatement(list)
	if err != nil {
		utils.Fail(c, utils.Internal("Failed to build statement", err))
		return
	}
	defer f.Close()

	name := fmt.Sprintf("healtrip-bookings-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		h.Log.Error("failed to stream statement", zap.Error(err))
	}
}

func (h *Handler) CancelBooking(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	// the body is optional
	_ = c.ShouldBindJSON(&req)
	b, err := h.Bookings.CancelBooking(c.Request.Context(), id, c.Param("id"), req.Reason)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, b, "Booking cancelled successfully")
}

// WebhookUpdate receives provider events relayed by the payment service.
func (h *Handler) WebhookUpdate(c *gin.Context) {
	var req services.WebhookUpdate
	if !bind(c, &req) {
		return
	}
	b, err := h.Bookings.ApplyWebhookUpdate(c.Request.Context(), req)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, http.StatusOK, b, "Webhook update applied")
}
