package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/billiard-pos/services"
	"github.com/yeremiapane/billiard-pos/utils"
)

// ErrNoPermission is returned when the caller's role cannot use a resource.
var ErrNoPermission = &CustomError{"You do not have permission"}

type CustomError struct {
	Message string
}

func (e *CustomError) Error() string {
	return e.Message
}

var errInternal = errors.New("internal error, please retry")

// StatusFor maps a service error onto its HTTP status.
func StatusFor(err error) int {
	switch services.KindOf(err) {
	case services.KindValidation, services.KindPolicy:
		return http.StatusBadRequest
	case services.KindAuthorization:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondServiceError writes err with its status and reason code. Infrastructure
// failures are logged and hidden behind a generic message.
func respondServiceError(c *gin.Context, err error) {
	status := StatusFor(err)
	var se *services.ServiceError
	if errors.As(err, &se) {
		utils.RespondErrorCode(c, status, se.Code, se)
		return
	}
	utils.ErrorLogger.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"path":       c.FullPath(),
		"error":      err,
	}).Error("Request failed")
	_ = c.Error(err)
	utils.RespondError(c, status, errInternal)
}

// uintParam parses a numeric path parameter, answering 400 when it is not one.
func uintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid %s %q", name, raw))
		return 0, false
	}
	return uint(id), true
}
