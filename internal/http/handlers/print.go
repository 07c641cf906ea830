package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comandas/backend/internal/db"
	"github.com/comandas/backend/internal/models"
	"github.com/comandas/backend/internal/normalizer"
)

type operatorRequest struct {
	OperatorID string `json:"operator_id" binding:"required"`
}

func printRoute(c *gin.Context) (string, bool) {
	route := normalizer.Norm(c.Param("route"))
	if route == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid route", nil)
		return "", false
	}
	return route, true
}

type enterResponse struct {
	CutoffLote *int64 `json:"cutoff_lote"`
	Entered    bool   `json:"entered"`
}

// @Summary Enter a route as operator
// @Description Records the operator on the route and snapshots the cutoff lote for the initial print
// @Tags printing
// @Accept json
// @Produce json
// @Param route path string true "route name"
// @Param request body operatorRequest true "operator"
// @Success 200 {object} enterResponse
// @Failure 404 {object} apiError
// @Router /api/print/routes/{route}/operator/enter [post]
func (h *Handler) EnterRoute(c *gin.Context) {
	route, ok := printRoute(c)
	if !ok {
		return
	}
	var req operatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	prog, entered, err := h.Printing.EnterRoute(c.Request.Context(), req.OperatorID, route, actor(c))
	if err != nil {
		h.svcError(c, err)
		return
	}
	status := http.StatusOK
	if entered {
		status = http.StatusCreated
	}
	c.JSON(status, enterResponse{CutoffLote: prog.CutoffLoteID, Entered: entered})
}

type printResponse struct {
	JobID      string          `json:"job_id"`
	LinesCount int             `json:"lines_count"`
	PDFURL     string          `json:"pdf_url"`
	Job        models.PrintJob `json:"job"`
}

func (h *Handler) printCreated(c *gin.Context, job models.PrintJob, n int) {
	c.JSON(http.StatusCreated, printResponse{
		JobID: job.ID, LinesCount: n, PDFURL: h.Printing.PDFURL(job), Job: job,
	})
}

// @Summary Operator initial print
// @Description Prints the operator's lines up to the cutoff recorded when entering the route
// @Tags printing
// @Accept json
// @Produce json
// @Param route path string true "route name"
// @Param request body operatorRequest true "operator"
// @Success 201 {object} printResponse
// @Failure 409 {object} apiError
// @Router /api/print/routes/{route}/operator/print-initial [post]
func (h *Handler) PrintOperatorInitial(c *gin.Context) {
	route, ok := printRoute(c)
	if !ok {
		return
	}
	var req operatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	job, n, err := h.Printing.PrintOperatorInitial(c.Request.Context(), req.OperatorID, route, actor(c))
	if err != nil {
		h.svcError(c, err)
		return
	}
	h.printCreated(c, job, n)
}

// @Summary Operator new-lines print
// @Description Prints the operator's lines that arrived after their last print
// @Tags printing
// @Accept json
// @Produce json
// @Param route path string true "route name"
// @Param request body operatorRequest true "operator"
// @Success 201 {object} printResponse
// @Failure 409 {object} apiError
// @Router /api/print/routes/{route}/operator/print-new [post]
func (h *Handler) PrintOperatorNew(c *gin.Context) {
	route, ok := printRoute(c)
	if !ok {
		return
	}
	var req operatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	job, n, err := h.Printing.PrintOperatorNew(c.Request.Context(), req.OperatorID, route, actor(c))
	if err != nil {
		h.svcError(c, err)
		return
	}
	h.printCreated(c, job, n)
}

// @Summary Collector closure print
// @Description Prints every line of the route since the last collector closure, across operators
// @Tags printing
// @Produce json
// @Param route path string true "route name"
// @Success 201 {object} printResponse
// @Failure 409 {object} apiError
// @Router /api/print/routes/{route}/collector/print-new [post]
func (h *Handler) PrintCollectorNew(c *gin.Context) {
	route, ok := printRoute(c)
	if !ok {
		return
	}
	job, n, err := h.Printing.PrintCollectorNew(c.Request.Context(), route, actor(c))
	if err != nil {
		h.svcError(c, err)
		return
	}
	h.printCreated(c, job, n)
}

// @Summary Reprint an existing job
// @Tags printing
// @Produce json
// @Param id path string true "print job id"
// @Success 201 {object} printResponse
// @Failure 404 {object} apiError
// @Router /api/print/jobs/{id}/reprint [post]
func (h *Handler) ReprintJob(c *gin.Context) {
	job, n, err := h.Printing.Reprint(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		h.svcError(c, err)
		return
	}
	h.printCreated(c, job, n)
}

// @Summary List print jobs
// @Tags printing
// @Produce json
// @Param shift_id query int false "shift id, defaults to the active shift"
// @Param route query string false "route filter"
// @Success 200 {array} models.PrintJob
// @Router /api/print/jobs [get]
func (h *Handler) ListPrintJobs(c *gin.Context) {
	ctx := c.Request.Context()
	shiftID := int64(queryInt(c, "shift_id", 0))
	if shiftID == 0 {
		shift, err := h.Store.GetActiveShift(ctx)
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NO_ACTIVE_SHIFT", "no active shift", nil)
			return
		}
		if err != nil {
			h.svcError(c, err)
			return
		}
		shiftID = shift.ID
	}
	route := ""
	if q := c.Query("route"); q != "" {
		route = normalizer.Norm(q)
	}
	out, err := h.Printing.ListJobs(ctx, shiftID, route, queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Print job detail
// @Tags printing
// @Produce json
// @Param id path string true "print job id"
// @Success 200 {object} models.PrintJob
// @Failure 404 {object} apiError
// @Router /api/print/jobs/{id} [get]
func (h *Handler) GetPrintJob(c *gin.Context) {
	job, err := h.Store.GetPrintJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.svcError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
