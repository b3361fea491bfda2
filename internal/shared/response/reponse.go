package response

import (
	"github.com/gin-gonic/gin"
)

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type Meta struct {
	Total     int    `json:"total,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Success responses
func Success(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    requestMeta(c, 0),
	})
}

func SuccessWithTotal(c *gin.Context, statusCode int, message string, data interface{}, total int) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    requestMeta(c, total),
	})
}

// Error responses
func Error(c *gin.Context, statusCode int, message string, details interface{}) {
	ErrorWithCode(c, statusCode, "", message, details)
}

func ErrorWithCode(c *gin.Context, statusCode int, code, message string, details interface{}) {
	c.JSON(statusCode, Response{
		Success: false,
		Error: &ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: requestMeta(c, 0),
	})
}

func requestMeta(c *gin.Context, total int) *Meta {
	id := c.GetString("request_id")
	if id == "" && total == 0 {
		return nil
	}
	return &Meta{Total: total, RequestID: id}
}
