package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comandas/backend/internal/db"
	"github.com/comandas/backend/internal/models"
	"github.com/comandas/backend/internal/normalizer"
)

type openShiftRequest struct {
	Date string `json:"date" binding:"required" validate:"datetime=2006-01-02"`
	Slot string `json:"slot" binding:"required" validate:"oneof=MORNING AFTERNOON NIGHT"`
}

// @Summary Open a shift
// @Description Activates a shift for the given date and slot, carrying over unprinted work from the previous shift
// @Tags shifts
// @Accept json
// @Produce json
// @Param request body openShiftRequest true "date and slot"
// @Success 201 {object} map[string]any
// @Failure 409 {object} apiError
// @Router /api/shifts/open [post]
func (h *Handler) OpenShift(c *gin.Context) {
	var req openShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "date must be YYYY-MM-DD", nil)
		return
	}

	shift, carry, err := h.Shifts.Open(c.Request.Context(), date, req.Slot, actor(c))
	if err != nil {
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"shift": shift, "carryover": carry})
}

// @Summary Close the active shift
// @Tags shifts
// @Produce json
// @Param id path int true "shift id"
// @Success 200 {object} models.Shift
// @Failure 409 {object} apiError
// @Router /api/shifts/{id}/close [post]
func (h *Handler) CloseShift(c *gin.Context) {
	shiftID, ok := pathID(c, "id")
	if !ok {
		return
	}
	shift, err := h.Shifts.Close(c.Request.Context(), shiftID, actor(c))
	if err != nil {
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusOK, shift)
}

// @Summary Current active shift
// @Tags shifts
// @Produce json
// @Success 200 {object} models.Shift
// @Failure 404 {object} apiError
// @Router /api/shifts/active [get]
func (h *Handler) ActiveShift(c *gin.Context) {
	shift, err := h.Store.GetActiveShift(c.Request.Context())
	if errors.Is(err, db.ErrNotFound) {
		writeError(c, http.StatusNotFound, "NO_ACTIVE_SHIFT", "no active shift", nil)
		return
	}
	if err != nil {
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusOK, shift)
}

type qualificationsRequest struct {
	Qualifications []struct {
		OperatorID     string `json:"operator_id" binding:"required"`
		FunctionalCode int    `json:"functional_code" binding:"required" validate:"min=1,max=6"`
		Enabled        bool   `json:"enabled"`
	} `json:"qualifications" binding:"required"`
}

// @Summary Replace a shift's qualification pool
// @Tags shifts
// @Accept json
// @Produce json
// @Param id path int true "shift id"
// @Param request body qualificationsRequest true "qualifications"
// @Success 200 {array} models.Qualification
// @Router /api/shifts/{id}/qualifications [put]
func (h *Handler) PutQualifications(c *gin.Context) {
	shiftID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req qualificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	if _, err := h.Store.GetShift(c.Request.Context(), shiftID); err != nil {
		h.svcError(c, err)
		return
	}

	quals := make([]models.Qualification, 0, len(req.Qualifications))
	for _, q := range req.Qualifications {
		quals = append(quals, models.Qualification{
			ShiftID:        shiftID,
			OperatorID:     q.OperatorID,
			FunctionalCode: q.FunctionalCode,
			Enabled:        q.Enabled,
		})
	}
	if err := h.Store.ReplaceQualifications(c.Request.Context(), shiftID, quals); err != nil {
		h.svcError(c, err)
		return
	}
	out, err := h.Store.ListQualifications(c.Request.Context(), shiftID)
	if err != nil {
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary List a shift's qualification pool
// @Tags shifts
// @Produce json
// @Param id path int true "shift id"
// @Success 200 {array} models.Qualification
// @Router /api/shifts/{id}/qualifications [get]
func (h *Handler) GetQualifications(c *gin.Context) {
	shiftID, ok := pathID(c, "id")
	if !ok {
		return
	}
	out, err := h.Store.ListQualifications(c.Request.Context(), shiftID)
	if err != nil {
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type collectorRequest struct {
	CollectorID string `json:"collector_id" binding:"required"`
}

// @Summary Bind a collector to a route for a shift
// @Tags shifts
// @Accept json
// @Produce json
// @Param id path int true "shift id"
// @Param route path string true "route name"
// @Param request body collectorRequest true "collector"
// @Success 200 {object} map[string]any
// @Router /api/shifts/{id}/collectors/{route} [put]
func (h *Handler) PutCollector(c *gin.Context) {
	shiftID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req collectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	route := normalizer.Norm(c.Param("route"))
	if route == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid route", nil)
		return
	}
	if err := h.Store.SetCollector(c.Request.Context(), shiftID, route, req.CollectorID); err != nil {
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shift_id": shiftID, "route": route, "collector_id": req.CollectorID})
}
