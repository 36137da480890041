package transport

import (
	"errors"
	"net/http"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// SuccessResponse представляет успешный ответ
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой; Retryable подсказывает клиенту повторить запрос вручную
type ErrorResponse struct {
	Success   bool             `json:"success"`
	Error     string           `json:"error"`
	Kind      entity.ErrorKind `json:"kind,omitempty"`
	Retryable bool             `json:"retryable,omitempty"`
}

var kindStatus = map[entity.ErrorKind]int{
	entity.KindValidation:       http.StatusBadRequest,
	entity.KindCapacityExceeded: http.StatusConflict,
	entity.KindAuthorization:    http.StatusForbidden,
	entity.KindUnauthenticated:  http.StatusUnauthorized,
	entity.KindNotFound:         http.StatusNotFound,
	entity.KindStoreWrite:       http.StatusServiceUnavailable,
	entity.KindUnavailable:      http.StatusServiceUnavailable,
}

func success(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, SuccessResponse{Success: true, Message: message, Data: data})
}

// respondError maps an error kind to its HTTP status
func respondError(c *gin.Context, err error) {
	kind := entity.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	resp := ErrorResponse{Success: false, Error: err.Error(), Kind: kind}

	var appErr *entity.AppError
	if errors.As(err, &appErr) {
		resp.Retryable = appErr.Retryable()
		if kind == entity.KindStoreWrite || kind == entity.KindUnavailable {
			resp.Error = appErr.Message
		}
	}
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("Unhandled error")
		resp.Kind = entity.KindInternal
		resp.Error = "internal server error"
	}

	c.JSON(status, resp)
}

// bindError reports a request that failed gin binding
func bindError(c *gin.Context, err error) {
	msg := err.Error()
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		msg = "invalid field " + verrs[0].Field() + ": " + verrs[0].Tag()
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: msg, Kind: entity.KindValidation})
}
