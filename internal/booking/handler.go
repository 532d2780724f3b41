package booking

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"judoclub/internal/api"
	"judoclub/internal/auth"
	"judoclub/internal/schedule"

	"github.com/gin-gonic/gin"
)

const maxRecurringWeeks = 52

type Handler struct {
	service      Service
	clock        func() time.Time
	horizonWeeks int
}

func NewHandler(service Service, clock func() time.Time, horizonWeeks int) *Handler {
	if clock == nil {
		clock = time.Now
	}
	if horizonWeeks <= 0 {
		horizonWeeks = 8
	}
	return &Handler{
		service:      service,
		clock:        clock,
		horizonWeeks: horizonWeeks,
	}
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, schedule.ErrTemplateNotFound), errors.Is(err, schedule.ErrInstanceNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error(), Code: "instance_not_found"})
	case errors.Is(err, schedule.ErrInvalidDate), errors.Is(err, ErrInvalidRecurrence):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrBookingNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Booking not found"})
	case errors.Is(err, ErrNotOwner):
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "You can only cancel your own bookings"})
	case errors.Is(err, ErrAlreadyCancelled):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error(), Code: "already_cancelled"})
	case errors.Is(err, ErrInstanceClosed):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error(), Code: "class_closed"})
	default:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Internal error"})
	}
}

// BookClass godoc
// @Summary      Book a class
// @Description  Books the dated class. A full class puts the member on the waitlist; repeating the request returns the existing booking.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        templateID  path  int                     true   "Template ID"
// @Param        date        path  string                  true   "Class date (YYYY-MM-DD)"
// @Param        request     body  booking.BookRequestBody false  "Optional recurrence"
// @Success      200  {object}  booking.BookResponse  "existing booking"
// @Success      201  {object}  booking.BookResponse
// @Failure      400  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      409  {object}  api.ErrorResponse
// @Router       /classes/{templateID}/{date}/book [post]
func (h *Handler) BookClass(c *gin.Context) {
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

	var body BookRequestBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		api.RespondBindError(c, err)
		return
	}

	b, created, err := h.service.Book(c.Request.Context(), BookRequest{
		MemberID:   memberID,
		TemplateID: key.TemplateID,
		Date:       key.Date,
		Recurrence: Recurrence(body.Recurrence),
	}, h.clock())
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, BookResponse{Booking: b, Created: created})
}

// CancelBooking godoc
// @Summary      Cancel booking
// @Description  Cancels a booking of the current member. Freed seats go to the waitlist in arrival order.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path  int  true  "Booking ID"
// @Success      200  {object}  booking.Booking
// @Failure      400  {object}  api.ErrorResponse
// @Failure      403  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      409  {object}  api.ErrorResponse
// @Router       /bookings/{bookingID}/cancel [post]
func (h *Handler) CancelBooking(c *gin.Context) {
	memberID, ok := auth.GetMemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Member not authenticated"})
		return
	}

	bookingID, err := strconv.ParseInt(c.Param("bookingID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid booking ID"})
		return
	}

	b, err := h.service.Cancel(c.Request.Context(), memberID, bookingID, h.clock())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}

// AdminCancelBooking godoc
// @Summary      Cancel any booking
// @Tags         admin,bookings
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path  int  true  "Booking ID"
// @Success      200  {object}  booking.Booking
// @Failure      400  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      409  {object}  api.ErrorResponse
// @Router       /admin/bookings/{bookingID}/cancel [post]
func (h *Handler) AdminCancelBooking(c *gin.Context) {
	bookingID, err := strconv.ParseInt(c.Param("bookingID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid booking ID"})
		return
	}

	b, err := h.service.CancelAny(c.Request.Context(), bookingID, h.clock())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}

// GetMyBookings godoc
// @Summary      List my bookings
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   booking.Booking
// @Failure      401  {object}  api.ErrorResponse
// @Router       /bookings [get]
func (h *Handler) GetMyBookings(c *gin.Context) {
	memberID, ok := auth.GetMemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Member not authenticated"})
		return
	}

	bookings, err := h.service.ListByMember(c.Request.Context(), memberID)
	if err != nil {
		writeError(c, err)
		return
	}
	if bookings == nil {
		bookings = []Booking{}
	}

	c.JSON(http.StatusOK, bookings)
}

// GetRecurringBookings godoc
// @Summary      Project recurring bookings
// @Description  Future occurrences of the member's weekly and biweekly bookings. Projected entries are not stored.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        weeks  query  int  false  "Horizon in weeks"
// @Success      200  {array}   booking.Booking
// @Failure      400  {object}  api.ErrorResponse
// @Router       /bookings/recurring [get]
func (h *Handler) GetRecurringBookings(c *gin.Context) {
	memberID, ok := auth.GetMemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Member not authenticated"})
		return
	}

	weeks := h.horizonWeeks
	if v := c.Query("weeks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxRecurringWeeks {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "weeks must be between 1 and 52"})
			return
		}
		weeks = n
	}

	now := h.clock()
	bookings, err := h.service.RecurringBookingsFor(c.Request.Context(), memberID, now, now.AddDate(0, 0, 7*weeks))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// GetSeats godoc
// @Summary      Seat availability
// @Tags         classes
// @Security     BearerAuth
// @Produce      json
// @Param        templateID  path  int     true  "Template ID"
// @Param        date        path  string  true  "Class date (YYYY-MM-DD)"
// @Success      200  {object}  booking.Seats
// @Failure      404  {object}  api.ErrorResponse
// @Router       /classes/{templateID}/{date}/seats [get]
func (h *Handler) GetSeats(c *gin.Context) {
	key, err := schedule.KeyFromParams(c)
	if err != nil {
		writeError(c, err)
		return
	}

	seats, err := h.service.Seats(c.Request.Context(), key)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, seats)
}

// GetInstanceBookings godoc
// @Summary      Bookings of a class
// @Tags         admin,bookings
// @Security     BearerAuth
// @Produce      json
// @Param        templateID  path  int     true  "Template ID"
// @Param        date        path  string  true  "Class date (YYYY-MM-DD)"
// @Success      200  {array}   booking.Booking
// @Failure      400  {object}  api.ErrorResponse
// @Router       /admin/classes/{templateID}/{date}/bookings [get]
func (h *Handler) GetInstanceBookings(c *gin.Context) {
	key, err := schedule.KeyFromParams(c)
	if err != nil {
		writeError(c, err)
		return
	}

	bookings, err := h.service.ListByInstance(c.Request.Context(), key)
	if err != nil {
		writeError(c, err)
		return
	}
	if bookings == nil {
		bookings = []Booking{}
	}

	c.JSON(http.StatusOK, bookings)
}
