package routes

import (
	"github.com/gin-gonic/gin"

	"lostandfound/internal/handlers"
	"lostandfound/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	authHandler *handlers.AuthHandler,
	recoveryHandler *handlers.RecoveryHandler,
	auditHandler *handlers.AuditHandler,
) *gin.Engine {

	// ---- public
	r.POST("/login", authHandler.Login)

	recovery := r.Group("/recovery")
	{
		recovery.POST("/sms/request", recoveryHandler.RequestSMSReset)
		recovery.POST("/sms/verify", recoveryHandler.VerifySMSReset)
		recovery.POST("/email/request", recoveryHandler.RequestEmailReset)
		recovery.GET("/email/validate", recoveryHandler.ValidateResetToken)
		recovery.POST("/email/confirm", recoveryHandler.ConfirmEmailReset)
	}

	verify := r.Group("/verify")
	{
		verify.POST("/phone/request", recoveryHandler.RequestPhoneVerify)
		verify.POST("/phone/confirm", recoveryHandler.ConfirmPhoneVerify)
	}

	// ---- protected (JWT)
	authed := r.Group("", middleware.AuthMiddleware())
	{
		authed.POST("/password/change", recoveryHandler.ChangePassword)

		audit := authed.Group("/audit")
		{
			audit.GET("/events", auditHandler.ListEvents)
			audit.GET("/suspicious", auditHandler.Suspicious)
			audit.GET("/report", auditHandler.Report)
		}
	}

	return r
}
