package http

import "github.com/gin-gonic/gin"

// Envelope is the uniform response wrapper. Error responses omit data.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respond(c *gin.Context, status int, data any, msg string) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(status, Envelope{StatusCode: status, Data: data, Message: msg, Success: true})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Envelope{StatusCode: status, Message: msg, Success: false})
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Envelope{StatusCode: status, Message: msg, Success: false})
}
