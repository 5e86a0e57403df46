package response

import (
	"errors"
	"net/http"
	"time"

	"lexpay/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SuccessResponse wraps every 2xx body.
type SuccessResponse struct {
	Data      any    `json:"data"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse wraps every 4xx/5xx body. TransactionID is set when the
// failure concerns a transaction that was already recorded.
type ErrorResponse struct {
	ErrorCode     string `json:"error_code"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id,omitempty"`
	RequestID     string `json:"request_id"`
	Timestamp     string `json:"timestamp"`
}

func OK(c *gin.Context, data any)       { success(c, http.StatusOK, data) }
func Created(c *gin.Context, data any)  { success(c, http.StatusCreated, data) }
func Accepted(c *gin.Context, data any) { success(c, http.StatusAccepted, data) }

func success(c *gin.Context, status int, data any) {
	c.JSON(status, SuccessResponse{
		Data:      data,
		RequestID: requestID(c),
		Timestamp: now(),
	})
}

// Error writes the envelope for err. Anything that is not an *apperror.AppError
// is reported as SYS_001 and its text never reaches the client. The original
// error is attached to the gin context for the request logger.
func Error(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.InternalError(err)
	}
	c.JSON(appErr.HTTPStatus, ErrorResponse{
		ErrorCode:     appErr.Code,
		Message:       appErr.Message,
		TransactionID: appErr.TransactionID,
		RequestID:     requestID(c),
		Timestamp:     now(),
	})
}

func requestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
