package Controllers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/billiard-pos/controllers"
	"github.com/yeremiapane/billiard-pos/models"
)

func TestSessionEndpoints(t *testing.T) {
	db := setupTestDB(t)
	svcs := newServices(db)
	table := seedTable(t, db, "S1", 60000)

	router := gin.New()
	ctrl := controllers.NewSessionController(svcs.Sessions)
	router.POST("/sessions", ctrl.OpenSession)
	router.GET("/sessions", ctrl.ListSessions)
	router.GET("/sessions/:session_id", ctrl.GetSession)
	router.PATCH("/sessions/:session_id", ctrl.RenameSession)
	router.POST("/sessions/:session_id/pause", ctrl.PauseSession)
	router.POST("/sessions/:session_id/resume", ctrl.ResumeSession)
	router.POST("/sessions/:session_id/release", ctrl.ReleaseSession)

	w := doJSON(t, router, "POST", "/sessions", gin.H{"table_id": table.ID, "customer_name": "Andi"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	session := decode(t, w)["data"].(map[string]interface{})
	sessionURL := fmt.Sprintf("/sessions/%d", uint(session["id"].(float64)))
	assert.Equal(t, models.SessionStatusOpen, session["status"])

	w = doJSON(t, router, "POST", "/sessions", gin.H{"table_id": table.ID}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "TABLE_ALREADY_OCCUPIED", decode(t, w)["code"])

	w = doJSON(t, router, "POST", "/sessions", gin.H{"table_id": 999}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, "POST", sessionURL+"/resume", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", decode(t, w)["code"])

	w = doJSON(t, router, "POST", sessionURL+"/pause", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SessionStatusPaused, decode(t, w)["data"].(map[string]interface{})["status"])

	w = doJSON(t, router, "POST", sessionURL+"/resume", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "PATCH", sessionURL, gin.H{"customer_name": "Team Blue"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "GET", sessionURL, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "Team Blue", view["customer_name"])
	assert.Contains(t, view, "table_time_estimate")
	assert.Len(t, view["orders"], 1)

	w = doJSON(t, router, "POST", sessionURL+"/release", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SessionStatusReleased, decode(t, w)["data"].(map[string]interface{})["status"])

	w = doJSON(t, router, "POST", sessionURL+"/pause", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SESSION_NOT_ACTIVE", decode(t, w)["code"])

	w = doJSON(t, router, "GET", "/sessions?status=released", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)
}
