package attendance

import (
	"context"
	"errors"
	"net/http"
	"time"

	"judoclub/internal/api"
	"judoclub/internal/auth"
	"judoclub/internal/logger"
	"judoclub/internal/schedule"

	"github.com/gin-gonic/gin"
)

const defaultHistoryDays = 90

// Directory resolves member display names for the roster.
type Directory interface {
	NamesByID(ctx context.Context, ids []int64) (map[int64]string, error)
}

type Handler struct {
	tracker   Tracker
	directory Directory
	loc       *time.Location
	clock     func() time.Time
}

func NewHandler(tracker Tracker, directory Directory, loc *time.Location, clock func() time.Time) *Handler {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		tracker:   tracker,
		directory: directory,
		loc:       loc,
		clock:     clock,
	}
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, schedule.ErrTemplateNotFound), errors.Is(err, schedule.ErrInstanceNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error(), Code: "instance_not_found"})
	case errors.Is(err, ErrNoRecord):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error(), Code: "no_record"})
	case errors.Is(err, schedule.ErrInvalidDate), errors.Is(err, schedule.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Internal error"})
	}
}

// GetStatus godoc
// @Summary      My attendance for a class
// @Tags         attendance
// @Security     BearerAuth
// @Produce      json
// @Param        templateID  path  int     true  "Template ID"
// @Param        date        path  string  true  "Class date (YYYY-MM-DD)"
// @Success      200  {object}  attendance.Record
// @Failure      404  {object}  api.ErrorResponse
// @Router       /attendance/{templateID}/{date} [get]
func (h *Handler) GetStatus(c *gin.Context) {
	memberID, ok := auth.GetMemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Member not authenticated"})
		return
	}

	key, err := schedule.KeyFromParams(c)
	if err != nil {
		writeError(c, err)
		return
	}

	rec, err := h.tracker.Status(c.Request.Context(), key, memberID, h.clock())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// GetHistory godoc
// @Summary      My attendance history
// @Description  Defaults to the last 90 days.
// @Tags         attendance
// @Security     BearerAuth
// @Produce      json
// @Param        from  query  string  false  "First day (YYYY-MM-DD)"
// @Param        to    query  string  false  "Last day (YYYY-MM-DD)"
// @Success      200  {object}  attendance.HistoryResponse
// @Failure      400  {object}  api.ErrorResponse
// @Router       /attendance/history [get]
func (h *Handler) GetHistory(c *gin.Context) {
	memberID, ok := auth.GetMemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Member not authenticated"})
		return
	}

	now := h.clock()
	from, to := now.AddDate(0, 0, -defaultHistoryDays), now
	if v := c.Query("from"); v != "" {
		parsed, err := schedule.ParseDate(v, h.loc)
		if err != nil {
			writeError(c, err)
			return
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := schedule.ParseDate(v, h.loc)
		if err != nil {
			writeError(c, err)
			return
		}
		to = parsed
	}

	records, err := h.tracker.History(c.Request.Context(), memberID, from, to, now)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := HistoryResponse{Records: records}
	for _, rec := range records {
		if rec.Status == StatusAttended {
			resp.TotalPoints += rec.Points
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetRoster godoc
// @Summary      Class roster
// @Description  Coach view of booked, waitlisted and walk-in members with their attendance.
// @Tags         admin,attendance
// @Security     BearerAuth
// @Produce      json
// @Param        templateID  path  int     true  "Template ID"
// @Param        date        path  string  true  "Class date (YYYY-MM-DD)"
// @Success      200  {array}   attendance.RosterEntry
// @Failure      404  {object}  api.ErrorResponse
// @Router       /admin/classes/{templateID}/{date}/roster [get]
func (h *Handler) GetRoster(c *gin.Context) {
	key, err := schedule.KeyFromParams(c)
	if err != nil {
		writeError(c, err)
		return
	}

	roster, err := h.tracker.Roster(c.Request.Context(), key, h.clock())
	if err != nil {
		writeError(c, err)
		return
	}

	if h.directory != nil && len(roster) > 0 {
		ids := make([]int64, 0, len(roster))
		for _, e := range roster {
			ids = append(ids, e.MemberID)
		}
		names, err := h.directory.NamesByID(c.Request.Context(), ids)
		if err != nil {
			logger.Warn("roster names unavailable", "instance", key.String(), "error", err)
		}
		for i := range roster {
			roster[i].Name = names[roster[i].MemberID]
		}
	}

	c.JSON(http.StatusOK, roster)
}
