package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"judoclub/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDirectory struct {
	names map[int64]string
	err   error
}

func (d stubDirectory) NamesByID(_ context.Context, _ []int64) (map[int64]string, error) {
	return d.names, d.err
}

func setupAttendanceRouter(t *testing.T, now time.Time, dir Directory) (*gin.Engine, *trackerFixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := newTrackerFixture(t)
	h := NewHandler(f.tracker, dir, time.UTC, func() time.Time { return now })

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if id, err := strconv.ParseInt(c.GetHeader("X-Member-ID"), 10, 64); err == nil {
			auth.SetIdentity(c, id, auth.RoleMember)
		}
		c.Next()
	})
	router.GET("/attendance/history", h.GetHistory)
	router.GET("/attendance/:templateID/:date", h.GetStatus)
	router.GET("/admin/classes/:templateID/:date/roster", h.GetRoster)
	return router, f
}

func get(router *gin.Engine, path string, memberID int64) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if memberID != 0 {
		req.Header.Set("X-Member-ID", strconv.FormatInt(memberID, 10))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_GetStatus(t *testing.T) {
	router, f := setupAttendanceRouter(t, at(20, 35), nil)
	f.book(t, 1)
	path := fmt.Sprintf("/attendance/%d/%s", f.key.TemplateID, f.key.Date)

	w := get(router, path, 1)
	require.Equal(t, http.StatusOK, w.Code)
	var rec Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, StatusMissed, rec.Status)

	w = get(router, path, 2)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no_record")

	w = get(router, path, 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(router, fmt.Sprintf("/attendance/%d/2024-03-05", f.key.TemplateID), 1)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_GetHistory(t *testing.T) {
	router, f := setupAttendanceRouter(t, at(21, 0), nil)
	_, err := f.tracker.RecordCheckIn(context.Background(), CheckIn{MemberID: 1, Key: f.key, At: at(19, 0), Method: MethodQR})
	require.NoError(t, err)

	w := get(router, "/attendance/history?from=2024-03-01&to=2024-03-31", 1)
	require.Equal(t, http.StatusOK, w.Code)
	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)
	assert.Equal(t, 10, resp.TotalPoints)

	w = get(router, "/attendance/history?from=March", 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(router, "/attendance/history?from=2024-03-31&to=2024-03-01", 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetRoster(t *testing.T) {
	router, f := setupAttendanceRouter(t, at(19, 30), stubDirectory{names: map[int64]string{1: "Ana Souza"}})
	f.book(t, 1)

	w := get(router, fmt.Sprintf("/admin/classes/%d/%s/roster", f.key.TemplateID, f.key.Date), 99)
	require.Equal(t, http.StatusOK, w.Code)

	var roster []RosterEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &roster))
	require.Len(t, roster, 1)
	assert.Equal(t, "Ana Souza", roster[0].Name)
	assert.Equal(t, StatusBooked, roster[0].Status)
}

func TestHandler_GetRoster_DirectoryDown(t *testing.T) {
	router, f := setupAttendanceRouter(t, at(19, 30), stubDirectory{err: errors.New("db down")})
	f.book(t, 1)

	w := get(router, fmt.Sprintf("/admin/classes/%d/%s/roster", f.key.TemplateID, f.key.Date), 99)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"name"`)
}
