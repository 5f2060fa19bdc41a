package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.Use(AccessLog())
	r.Use(Metrics())
	r.Use(Recovery())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	users := r.Group("/api/v1/users")
	{
		users.POST("/signup", h.Signup)
		users.POST("/signin", h.RateLimit("signin"), h.Signin)
		users.POST("/signout", h.Signout)
		users.GET("/profile", h.AuthRequired(), h.GetProfile)
		users.PATCH("/profile", h.AuthRequired(), h.UpdateProfile)
		users.PATCH("/password", h.AuthRequired(), h.ChangePassword)
		users.POST("/forgot-password", h.RateLimit("forgot-password"), h.ForgotPassword)
		users.POST("/reset-password/:token", h.ResetPassword)
		users.DELETE("/account", h.AuthRequired(), h.DeleteAccount)
	}
	return r
}
