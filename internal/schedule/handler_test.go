package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupScheduleRouter(t *testing.T) (*gin.Engine, Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := NewService(NewMemoryRepository(), time.UTC)
	clock := func() time.Time { return time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC) }
	h := NewHandler(svc, clock)

	router := gin.New()
	router.GET("/classes", h.ListInstances)
	router.POST("/admin/templates", h.CreateTemplate)
	router.GET("/admin/templates", h.ListTemplates)
	router.POST("/admin/templates/:templateID/deactivate", h.DeactivateTemplate)
	return router, svc
}

func TestHandler_CreateTemplate(t *testing.T) {
	router, _ := setupScheduleRouter(t)

	body := `{"name":"Adults Randori","day_of_week":1,"start_hour":19,"duration_minutes":90,"capacity":20}`
	req := httptest.NewRequest(http.MethodPost, "/admin/templates", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var tpl ClassTemplate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tpl))
	assert.Equal(t, int64(1), tpl.ID)
	assert.True(t, tpl.Active)
}

func TestHandler_CreateTemplate_Invalid(t *testing.T) {
	router, _ := setupScheduleRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"name": "x`},
		{"missing weekday", `{"name":"x","start_hour":9,"duration_minutes":60,"capacity":5}`},
		{"weekday out of range", `{"name":"x","day_of_week":9,"start_hour":9,"duration_minutes":60,"capacity":5}`},
		{"zero capacity", `{"name":"x","day_of_week":1,"start_hour":9,"duration_minutes":60,"capacity":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/templates", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandler_ListInstances(t *testing.T) {
	router, svc := setupScheduleRouter(t)

	_, err := svc.CreateTemplate(context.Background(), CreateTemplateRequest{
		Name: "Adults Randori", DayOfWeek: intPtr(1), StartHour: intPtr(19), DurationMinutes: 90, Capacity: 20,
	})
	require.NoError(t, err)

	t.Run("defaults to the coming week", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/classes", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var instances []Instance
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &instances))
		require.Len(t, instances, 1)
		assert.Equal(t, "2024-03-04", instances[0].Date)
	})

	t.Run("explicit range", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/classes?from=2024-03-01&to=2024-03-31", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var instances []Instance
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &instances))
		assert.Len(t, instances, 4)
	})

	t.Run("bad ranges", func(t *testing.T) {
		for _, q := range []string{"from=yesterday", "from=2024-03-10&to=2024-03-01", "from=2024-01-01&to=2024-12-31"} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/classes?"+q, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code, q)
		}
	})
}

func TestHandler_DeactivateTemplate(t *testing.T) {
	router, svc := setupScheduleRouter(t)

	tpl, err := svc.CreateTemplate(context.Background(), CreateTemplateRequest{
		Name: "Kata", DayOfWeek: intPtr(3), StartHour: intPtr(18), DurationMinutes: 60, Capacity: 8,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/admin/templates/%d/deactivate", tpl.ID), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/templates/99/deactivate", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/templates?active=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var templates []ClassTemplate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &templates))
	assert.Empty(t, templates)
}
