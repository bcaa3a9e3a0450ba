package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/billiard-pos/services"
	"github.com/yeremiapane/billiard-pos/utils"
)

type SessionController struct {
	Sessions *services.TableSessionService
}

func NewSessionController(sessions *services.TableSessionService) *SessionController {
	return &SessionController{Sessions: sessions}
}

// OpenSession seats a walk-in on a table.
func (sc *SessionController) OpenSession(c *gin.Context) {
	var req struct {
		TableID      uint   `json:"table_id" binding:"required"`
		CustomerName string `json:"customer_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	session, err := sc.Sessions.Open(c.Request.Context(), req.TableID, req.CustomerName)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Table session opened", session)
}

func (sc *SessionController) PauseSession(c *gin.Context) {
	sessionID, ok := uintParam(c, "session_id")
	if !ok {
		return
	}
	session, err := sc.Sessions.Pause(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table session paused", session)
}

func (sc *SessionController) ResumeSession(c *gin.Context) {
	sessionID, ok := uintParam(c, "session_id")
	if !ok {
		return
	}
	session, err := sc.Sessions.Resume(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table session resumed", session)
}

// ReleaseSession ends the session and bills table time.
func (sc *SessionController) ReleaseSession(c *gin.Context) {
	sessionID, ok := uintParam(c, "session_id")
	if !ok {
		return
	}
	session, err := sc.Sessions.Release(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table session released", session)
}

func (sc *SessionController) RenameSession(c *gin.Context) {
	sessionID, ok := uintParam(c, "session_id")
	if !ok {
		return
	}
	var req struct {
		CustomerName string `json:"customer_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	session, err := sc.Sessions.Rename(c.Request.Context(), sessionID, req.CustomerName)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table session renamed", session)
}

func (sc *SessionController) GetSession(c *gin.Context) {
	sessionID, ok := uintParam(c, "session_id")
	if !ok {
		return
	}
	view, err := sc.Sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table session detail", view)
}

// ListSessions lists sessions, optionally filtered by ?status=.
func (sc *SessionController) ListSessions(c *gin.Context) {
	views, err := sc.Sessions.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of table sessions", views)
}
