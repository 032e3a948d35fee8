package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lostandfound/internal/services"
)

// RecoveryHandler exposes the SMS and email recovery flows. Request endpoints
// always answer with a generic acceptance so identifiers cannot be
// enumerated; verify/confirm endpoints report only the taxonomy-level reason.
type RecoveryHandler struct {
	Verify *services.VerificationService
	Reset  services.PasswordResetService
	TempPw services.TempPasswordService
}

func NewRecoveryHandler(verify *services.VerificationService, reset services.PasswordResetService, tempPw services.TempPasswordService) *RecoveryHandler {
	return &RecoveryHandler{Verify: verify, Reset: reset, TempPw: tempPw}
}

const acceptedMessage = "If this identifier exists, instructions were sent"

func codeErrorResponse(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrCodeExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "code expired, please request a new one"})
	case errors.Is(err, services.ErrTooManyAttempts):
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many attempts, please request a new code"})
	case errors.Is(err, services.ErrCodeInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
	}
}

// @Summary      Request password reset by SMS
// @Tags         Recovery
// @Accept       json
// @Produce      json
// @Param        request  body      object{phone=string}  true  "Phone"
// @Success      200      {object}  map[string]string
// @Router       /recovery/sms/request [post]
func (h *RecoveryHandler) RequestSMSReset(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := h.Verify.RequestPasswordReset(req.Phone); err != nil {
		if errors.Is(err, services.ErrResendThrottled) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, try later"})
			return
		}
		if errors.Is(err, services.ErrDeliveryFailed) {
			// the code survived; the client may retry the request
			c.JSON(http.StatusAccepted, gin.H{"message": acceptedMessage, "warning": "delivery delayed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "request failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": acceptedMessage})
}

// @Summary      Verify SMS reset code
// @Description  Consumes the code and returns a temporary password that must be changed on next login
// @Tags         Recovery
// @Accept       json
// @Produce      json
// @Param        request  body      object{phone=string,code=string}  true  "Phone and code"
// @Success      200      {object}  map[string]string
// @Failure      400      {object}  map[string]string
// @Router       /recovery/sms/verify [post]
func (h *RecoveryHandler) VerifySMSReset(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
		Code  string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	tempPassword, err := h.Verify.ConfirmPasswordReset(req.Phone, req.Code)
	if err != nil {
		codeErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":            "Verification successful",
		"temporary_password": tempPassword,
	})
}

// @Summary      Request password reset by email
// @Tags         Recovery
// @Accept       json
// @Produce      json
// @Param        request  body      object{email=string}  true  "Email"
// @Success      200      {object}  map[string]string
// @Router       /recovery/email/request [post]
func (h *RecoveryHandler) RequestEmailReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := h.Reset.RequestReset(req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "request failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": acceptedMessage})
}

// @Summary      Validate a reset token
// @Description  Side-effect-free check so the client can show the form before finalizing
// @Tags         Recovery
// @Produce      json
// @Param        token  query     string  true  "Reset token"
// @Success      200    {object}  map[string]string
// @Failure      400    {object}  map[string]string
// @Router       /recovery/email/validate [get]
func (h *RecoveryHandler) ValidateResetToken(c *gin.Context) {
	identifier, err := h.Reset.Validate(c.Query("token"))
	if err != nil {
		h.tokenErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identifier": identifier})
}

// @Summary      Complete password reset by link
// @Tags         Recovery
// @Accept       json
// @Produce      json
// @Param        request  body      object{token=string,new_password=string}  true  "Token and new password"
// @Success      200      {object}  map[string]string
// @Failure      400      {object}  map[string]string
// @Router       /recovery/email/confirm [post]
func (h *RecoveryHandler) ConfirmEmailReset(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := h.Reset.Consume(req.Token, req.NewPassword); err != nil {
		h.tokenErrorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset"})
}

func (h *RecoveryHandler) tokenErrorResponse(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTokenExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "token expired"})
	case errors.Is(err, services.ErrTokenAlreadyUsed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "token already used"})
	case errors.Is(err, services.ErrTokenInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// @Summary      Request phone verification code
// @Tags         Verification
// @Accept       json
// @Produce      json
// @Param        request  body      object{phone=string}  true  "Phone"
// @Success      200      {object}  map[string]string
// @Router       /verify/phone/request [post]
func (h *RecoveryHandler) RequestPhoneVerify(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := h.Verify.RequestPhoneVerify(req.Phone); err != nil {
		if errors.Is(err, services.ErrResendThrottled) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, try later"})
			return
		}
		if errors.Is(err, services.ErrDeliveryFailed) {
			c.JSON(http.StatusAccepted, gin.H{"message": "SMS queued", "warning": "delivery delayed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "request failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "SMS sent"})
}

// @Summary      Confirm phone verification code
// @Tags         Verification
// @Accept       json
// @Produce      json
// @Param        request  body      object{phone=string,code=string}  true  "Phone and code"
// @Success      200      {object}  map[string]string
// @Failure      400      {object}  map[string]string
// @Router       /verify/phone/confirm [post]
func (h *RecoveryHandler) ConfirmPhoneVerify(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
		Code  string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	ok, err := h.Verify.ConfirmPhoneVerify(req.Phone, req.Code)
	if err != nil {
		codeErrorResponse(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Phone verified"})
}

// @Summary      Change password
// @Description  Clears the forced-change flag; a non-forced change requires the current password
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      object{current_password=string,new_password=string}  true  "Passwords"
// @Success      200      {object}  map[string]string
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Router       /password/change [post]
func (h *RecoveryHandler) ChangePassword(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := h.TempPw.Finalize(userID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, services.ErrWrongPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "current password is wrong"})
		case errors.Is(err, services.ErrUserNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed"})
}
