package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitesafe/hsekpi/internal/lifecycle"
	"github.com/sitesafe/hsekpi/pkg/logger"
	"github.com/sitesafe/hsekpi/pkg/response"
	"gorm.io/gorm"
)

// fail maps a service error onto the API error format.
func fail(c *gin.Context, err error, notFound string) {
	var ve *lifecycle.ValidationError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		response.NotFound(c, notFound)
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrFrozen),
		errors.Is(err, lifecycle.ErrDuplicate):
		response.Conflict(c, err.Error())
	case errors.As(err, &ve):
		response.Error(c, response.NewInvalidField(ve.Field, ve.Message))
	default:
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		response.ServerError(c, err.Error())
	}
}

// idParam reads a positive numeric path parameter.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// dateParam reads a YYYY-MM-DD path parameter.
func dateParam(c *gin.Context, name string) (time.Time, bool) {
	d, err := time.ParseInLocation("2006-01-02", c.Param(name), time.UTC)
	if err != nil {
		response.BadRequest(c, "invalid "+name+", expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

// weekParams reads the :year and :week path parameters.
func weekParams(c *gin.Context) (week, year int, ok bool) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		response.BadRequest(c, "invalid year")
		return 0, 0, false
	}
	week, err = strconv.Atoi(c.Param("week"))
	if err != nil {
		response.BadRequest(c, "invalid week")
		return 0, 0, false
	}
	return week, year, true
}
