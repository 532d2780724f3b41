package checkin

import (
	"errors"
	"net/http"
	"time"

	"judoclub/internal/api"
	"judoclub/internal/attendance"
	"judoclub/internal/auth"
	"judoclub/internal/logger"
	"judoclub/internal/schedule"

	"github.com/gin-gonic/gin"
)

type ScanRequest struct {
	Token      string `json:"token" binding:"required"`
	TemplateID int64  `json:"template_id" binding:"required,gt=0"`
	Date       string `json:"date" binding:"required" example:"2024-03-04"`
}

type ManualRequest struct {
	Name       string `json:"name" binding:"required,max=200"`
	TemplateID int64  `json:"template_id" binding:"required,gt=0"`
	Date       string `json:"date" binding:"required" example:"2024-03-04"`
}

type AmbiguousNameResponse struct {
	Error      string      `json:"error"`
	Code       string      `json:"code" example:"ambiguous_name"`
	Candidates []Candidate `json:"candidates"`
}

type Handler struct {
	service Service
	clock   func() time.Time
}

func NewHandler(service Service, clock func() time.Time) *Handler {
	if clock == nil {
		clock = time.Now
	}
	return &Handler{service: service, clock: clock}
}

func writeError(c *gin.Context, err error) {
	var ambiguous *AmbiguousNameError
	switch {
	case errors.As(err, &ambiguous):
		c.JSON(http.StatusConflict, AmbiguousNameResponse{
			Error:      err.Error(),
			Code:       "ambiguous_name",
			Candidates: ambiguous.Candidates,
		})
	case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenUnknown), errors.Is(err, ErrTokenAlreadyUsed),
		errors.Is(err, attendance.ErrOutsideWindow):
		c.JSON(http.StatusUnprocessableEntity, api.ErrorResponse{Error: err.Error(), Code: rejectionReason(err)})
	case errors.Is(err, ErrNameNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error(), Code: "name_not_found"})
	case errors.Is(err, schedule.ErrTemplateNotFound), errors.Is(err, schedule.ErrInstanceNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error(), Code: "instance_not_found"})
	case errors.Is(err, schedule.ErrInvalidDate):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	default:
		logger.Error("check-in failed", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Internal error"})
	}
}

func instanceKey(templateID int64, date string) (schedule.InstanceKey, error) {
	if _, err := schedule.ParseDate(date, time.UTC); err != nil {
		return schedule.InstanceKey{}, err
	}
	return schedule.InstanceKey{TemplateID: templateID, Date: date}, nil
}

// IssueToken godoc
// @Summary      Issue check-in token
// @Description  Issues a short-lived single-use token for the QR code. Any earlier token of the member stops working.
// @Tags         checkin
// @Security     BearerAuth
// @Produce      json
// @Success      201  {object}  checkin.IssuedToken
// @Failure      401  {object}  api.ErrorResponse
// @Router       /checkin/token [post]
func (h *Handler) IssueToken(c *gin.Context) {
	memberID, ok := auth.GetMemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Member not authenticated"})
		return
	}

	tok, err := h.service.Issue(c.Request.Context(), memberID, h.clock())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tok)
}

// Scan godoc
// @Summary      Check in by QR token
// @Tags         admin,checkin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      checkin.ScanRequest  true  "Scanned token and class"
// @Success      200  {object}  attendance.Record
// @Failure      400  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      422  {object}  api.ErrorResponse
// @Router       /admin/checkin/scan [post]
func (h *Handler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondBindError(c, err)
		return
	}

	key, err := instanceKey(req.TemplateID, req.Date)
	if err != nil {
		writeError(c, err)
		return
	}

	rec, err := h.service.CheckInWithToken(c.Request.Context(), req.Token, key, h.clock())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// Manual godoc
// @Summary      Check in by name
// @Description  Resolves a typed name against the class roster. Ambiguous names return the candidates.
// @Tags         admin,checkin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      checkin.ManualRequest  true  "Member name and class"
// @Success      200  {object}  attendance.Record
// @Failure      400  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      409  {object}  checkin.AmbiguousNameResponse
// @Failure      422  {object}  api.ErrorResponse
// @Router       /admin/checkin/manual [post]
func (h *Handler) Manual(c *gin.Context) {
	var req ManualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondBindError(c, err)
		return
	}

	key, err := instanceKey(req.TemplateID, req.Date)
	if err != nil {
		writeError(c, err)
		return
	}

	rec, err := h.service.ManualCheckIn(c.Request.Context(), req.Name, key, h.clock())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}
