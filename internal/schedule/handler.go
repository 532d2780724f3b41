package schedule

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"judoclub/internal/api"

	"github.com/gin-gonic/gin"
)

const maxRangeDays = 92

type Handler struct {
	service Service
	clock   func() time.Time
}

func NewHandler(service Service, clock func() time.Time) *Handler {
	if clock == nil {
		clock = time.Now
	}
	return &Handler{
		service: service,
		clock:   clock,
	}
}

// KeyFromParams reads the :templateID and :date path parameters.
func KeyFromParams(c *gin.Context) (InstanceKey, error) {
	templateID, err := strconv.ParseInt(c.Param("templateID"), 10, 64)
	if err != nil || templateID <= 0 {
		return InstanceKey{}, ErrTemplateNotFound
	}
	date := c.Param("date")
	if _, err := time.Parse(DateLayout, date); err != nil {
		return InstanceKey{}, ErrInvalidDate
	}
	return InstanceKey{TemplateID: templateID, Date: date}, nil
}

// @Summary      List class instances
// @Description  Expands active weekly templates into dated classes. Defaults to the next 7 days.
// @Tags         classes
// @Produce      json
// @Security     BearerAuth
// @Param        from query string false "First day (YYYY-MM-DD)"
// @Param        to   query string false "Last day (YYYY-MM-DD)"
// @Success      200 {array} schedule.Instance
// @Failure      400 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /classes [get]
func (h *Handler) ListInstances(c *gin.Context) {
	loc := h.service.Location()
	today := h.clock().In(loc)
	from, to := today, today.AddDate(0, 0, 6)

	if v := c.Query("from"); v != "" {
		parsed, err := ParseDate(v, loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid from, use YYYY-MM-DD"})
			return
		}
		from = parsed
		if c.Query("to") == "" {
			to = from.AddDate(0, 0, 6)
		}
	}
	if v := c.Query("to"); v != "" {
		parsed, err := ParseDate(v, loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid to, use YYYY-MM-DD"})
			return
		}
		to = parsed
	}

	if to.Sub(from) > maxRangeDays*24*time.Hour {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "range too large"})
		return
	}

	instances, err := h.service.Instances(c.Request.Context(), from, to)
	if err != nil {
		if errors.Is(err, ErrInvalidRange) {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to expand classes"})
		return
	}
	if instances == nil {
		instances = []Instance{}
	}

	c.JSON(http.StatusOK, instances)
}

// @Summary      Create a class template
// @Description  Admin-only: define a weekly recurring class
// @Tags         admin,classes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body schedule.CreateTemplateRequest true "Template payload"
// @Success      201 {object} schedule.ClassTemplate
// @Failure      400 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /admin/templates [post]
func (h *Handler) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondBindError(c, err)
		return
	}

	tpl, err := h.service.CreateTemplate(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidTemplate) || errors.Is(err, ErrInvalidDate) {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create template"})
		return
	}

	c.JSON(http.StatusCreated, tpl)
}

// @Summary      List class templates
// @Tags         admin,classes
// @Produce      json
// @Security     BearerAuth
// @Param        active query bool false "Only active templates"
// @Success      200 {array} schedule.ClassTemplate
// @Failure      500 {object} api.ErrorResponse
// @Router       /admin/templates [get]
func (h *Handler) ListTemplates(c *gin.Context) {
	onlyActive := c.Query("active") == "true"

	templates, err := h.service.ListTemplates(c.Request.Context(), onlyActive)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch templates"})
		return
	}
	if templates == nil {
		templates = []ClassTemplate{}
	}

	c.JSON(http.StatusOK, templates)
}

// @Summary      Deactivate a class template
// @Description  Admin-only: stop generating new instances; booked dates still resolve
// @Tags         admin,classes
// @Produce      json
// @Security     BearerAuth
// @Param        templateID path int true "Template ID"
// @Success      200 {object} api.MessageResponse
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /admin/templates/{templateID}/deactivate [post]
func (h *Handler) DeactivateTemplate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("templateID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid template ID"})
		return
	}

	if err := h.service.DeactivateTemplate(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to deactivate template"})
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Template deactivated"})
}
