package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/service"
	"github.com/kirinyoku/quicktix/internal/service/community"
	"github.com/kirinyoku/quicktix/internal/service/users"
)

// @Summary  Register an account for a role
// @Description  One route per role: customer, organization, venue, marketing, artist.
// @Param    req  body  users.RegisterInput  true  "email, password and the role profile"
// @Success  201  {object}  domain.User
// @Failure  400  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "email taken"
// @Router   /customer-register [post]
func handleRegister(svcs *service.Services, role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in users.RegisterInput
		if !bindJSON(c, &in) {
			return
		}
		in.Role = role

		u, err := svcs.Users.Register(c.Request.Context(), in)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

// @Summary  Sign in with email and password
// @Param    req  body  LoginRequest  true  "credentials"
// @Success  200  {object}  users.Session
// @Failure  401  {object}  ErrorResponse
// @Failure  403  {object}  ErrorResponse "not verified"
// @Router   /login [post]
func handleLogin(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if !bindJSON(c, &req) {
			return
		}

		sess, err := svcs.Users.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

// @Summary  Sign in with a Google (Firebase) ID token
// @Param    req  body  GoogleSignInRequest  true  "token"
// @Success  200  {object}  users.Session
// @Failure  401  {object}  ErrorResponse
// @Router   /auth/google [post]
func handleGoogleSignIn(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GoogleSignInRequest
		if !bindJSON(c, &req) {
			return
		}

		sess, err := svcs.Users.GoogleSignIn(c.Request.Context(), req.IDToken)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

// @Summary  Validate a one-time code
// @Param    req  body  ValidateOTPRequest  true  "otp_type is register or reset"
// @Success  200  {object}  MessageResponse
// @Failure  400  {object}  ErrorResponse
// @Router   /validate-otp [post]
func handleValidateOTP(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ValidateOTPRequest
		if !bindJSON(c, &req) {
			return
		}

		if err := svcs.Users.ValidateOTP(c.Request.Context(), req.Email, req.OTP, req.OTPType); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, MessageResponse{Message: "otp verified"})
	}
}

// @Summary  Send a new one-time code
// @Param    req  body  ResendOTPRequest  true  "email"
// @Success  200  {object}  MessageResponse
// @Router   /resend-otp [post]
func handleResendOTP(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResendOTPRequest
		if !bindJSON(c, &req) {
			return
		}

		if err := svcs.Users.ResendOTP(c.Request.Context(), req.Email, req.OTPType); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, MessageResponse{Message: "otp sent"})
	}
}

// @Summary  Mail a password reset code
// @Param    req  body  ForgotPasswordRequest  true  "email"
// @Success  200  {object}  MessageResponse
// @Router   /forgot-password [post]
func handleForgotPassword(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ForgotPasswordRequest
		if !bindJSON(c, &req) {
			return
		}

		if err := svcs.Users.ForgotPassword(c.Request.Context(), req.Email); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, MessageResponse{Message: "otp sent"})
	}
}

// @Summary  Set a new password with a validated reset code
// @Param    req  body  users.ResetPasswordInput  true  "payload"
// @Success  200  {object}  MessageResponse
// @Failure  400  {object}  ErrorResponse
// @Router   /reset-password [post]
func handleResetPassword(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in users.ResetPasswordInput
		if !bindJSON(c, &in) {
			return
		}

		if err := svcs.Users.ResetPassword(c.Request.Context(), in); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, MessageResponse{Message: "password updated"})
	}
}

// @Summary  Account details with role profile
// @Param    id  path  int  true  "User ID"
// @Success  200  {object}  users.Details
// @Security BearerAuth
// @Router   /users/{id} [get]
func handleUserDetails(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		d, err := svcs.Users.Details(c.Request.Context(), userID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

// @Summary  Update email and role profile
// @Param    id   path  int                       true  "User ID"
// @Param    req  body  users.UpdateProfileInput  true  "payload"
// @Success  200  {object}  users.Details
// @Failure  409  {object}  ErrorResponse "email taken"
// @Security BearerAuth
// @Router   /users/{id}/profile [put]
func handleUpdateProfile(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		var in users.UpdateProfileInput
		if !bindJSON(c, &in) {
			return
		}

		d, err := svcs.Users.UpdateProfile(c.Request.Context(), userID, in)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

// @Summary  Update organization profile
// @Accept   multipart/form-data
// @Param    id                 path      int     true   "User ID"
// @Param    organization_name  formData  string  true   "organization name"
// @Param    contact_number     formData  string  true   "contact number"
// @Param    email              formData  string  false  "new email"
// @Param    description        formData  string  false  "description"
// @Param    address            formData  string  false  "address"
// @Param    social_links       formData  string  false  "social links"
// @Param    logo               formData  file    false  "logo image"
// @Param    banner             formData  file    false  "banner image"
// @Success  200  {object}  users.Details
// @Failure  400  {object}  ErrorResponse
// @Failure  500  {object}  ErrorResponse "upload failed"
// @Security BearerAuth
// @Router   /users/{id}/organization-profile [put]
func handleUpdateOrganizationProfile(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		var req OrganizationProfileRequest
		if err := c.ShouldBind(&req); err != nil {
			respondBindErr(c, err)
			return
		}

		in := users.OrganizationProfileInput{
			Email: req.Email,
			Profile: domain.OrganizationProfile{
				OrganizationName: req.OrganizationName,
				ContactNumber:    req.ContactNumber,
				Description:      req.Description,
				Address:          req.Address,
				SocialLinks:      req.SocialLinks,
			},
		}

		for field, dst := range map[string]**users.Image{"logo": &in.Logo, "banner": &in.Banner} {
			fh, err := c.FormFile(field)
			if err != nil {
				continue
			}
			f, err := fh.Open()
			if err != nil {
				respondErr(c, err)
				return
			}
			defer f.Close()

			*dst = &users.Image{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Body:        f,
			}
		}

		d, err := svcs.Users.UpdateOrganizationProfile(c.Request.Context(), userID, in)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

// @Summary  Change password
// @Param    id   path  int                        true  "User ID"
// @Param    req  body  users.UpdateSecurityInput  true  "payload"
// @Success  204
// @Failure  401  {object}  ErrorResponse "wrong current password"
// @Security BearerAuth
// @Router   /users/{id}/security [put]
func handleUpdateSecurity(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		var in users.UpdateSecurityInput
		if !bindJSON(c, &in) {
			return
		}

		if err := svcs.Users.UpdateSecurity(c.Request.Context(), userID, in); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Tickets bought per event and ticket type
// @Param    id  path  int  true  "User ID"
// @Success  200  {array}  domain.BookingHistoryEntry
// @Security BearerAuth
// @Router   /users/{id}/booking-history [get]
func handleBookingHistory(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		h, err := svcs.Orders.BookingHistory(c.Request.Context(), userID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, h)
	}
}

// @Summary  Payment history
// @Param    id  path  int  true  "User ID"
// @Success  200  {array}  domain.Order
// @Security BearerAuth
// @Router   /users/{id}/payment-history [get]
func handlePaymentHistory(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		h, err := svcs.Orders.PaymentHistory(c.Request.Context(), userID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, h)
	}
}

// @Summary  Follow a user
// @Param    id  path  int  true  "User to follow"
// @Success  204
// @Failure  409  {object}  ErrorResponse "already following"
// @Security BearerAuth
// @Router   /users/{id}/follow [post]
func handleFollow(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		me, _ := identity(c)
		userID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		if err := svcs.Community.Follow(c.Request.Context(), me.UserID, userID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Unfollow a user
// @Param    id  path  int  true  "User to unfollow"
// @Success  204
// @Failure  404  {object}  ErrorResponse "not following"
// @Security BearerAuth
// @Router   /users/{id}/follow [delete]
func handleUnfollow(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		me, _ := identity(c)
		userID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		if err := svcs.Community.Unfollow(c.Request.Context(), me.UserID, userID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Send an inquiry to an organization
// @Param    req  body  community.InquiryInput  true  "payload"
// @Success  201  {object}  domain.Inquiry
// @Failure  404  {object}  ErrorResponse "organization not found"
// @Router   /inquiries [post]
func handleCreateInquiry(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in community.InquiryInput
		if !bindJSON(c, &in) {
			return
		}

		inq, err := svcs.Community.CreateInquiry(c.Request.Context(), in)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, inq)
	}
}
