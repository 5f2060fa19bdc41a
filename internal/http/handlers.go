package http

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/tazhibayda/account-service/internal/config"
	"github.com/tazhibayda/account-service/internal/domain"
	"github.com/tazhibayda/account-service/internal/log"
	"github.com/tazhibayda/account-service/internal/media"
	"github.com/tazhibayda/account-service/internal/metrics"
	"github.com/tazhibayda/account-service/internal/queue"
	"github.com/tazhibayda/account-service/internal/repo"
	"github.com/tazhibayda/account-service/internal/security"
)

// UserStore is what the handlers need from the data layer.
type UserStore interface {
	Ping(ctx context.Context) error
	CreateUser(ctx context.Context, u *domain.User) error
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByEmailWithPassword(ctx context.Context, email string) (*domain.User, error)
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	FindUserByIDWithPassword(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, set bson.M) (*domain.User, error)
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
	SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expiresAt time.Time) error
	ResetPasswordByTokenHash(ctx context.Context, tokenHash, passwordHash string) (*domain.User, error)
	DeleteUser(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

type Handler struct {
	Store           UserStore
	Media           media.Storage
	Events          queue.Publisher
	Redis           *repo.Redis
	JWTSecret       string
	AccessTTL       time.Duration
	ResetTTL        time.Duration
	CookieSecure    bool
	RateLimitPerMin int
	Exchange        string
}

func NewHandler(store UserStore, med media.Storage, pub queue.Publisher, rds *repo.Redis, cfg *config.Config) *Handler {
	return &Handler{
		Store:           store,
		Media:           med,
		Events:          pub,
		Redis:           rds,
		JWTSecret:       cfg.JWTSecret,
		AccessTTL:       time.Duration(cfg.AccessTTLMin) * time.Minute,
		ResetTTL:        time.Duration(cfg.ResetTTLMin) * time.Minute,
		CookieSecure:    cfg.CookieSecure,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Exchange:        cfg.RabbitExchange,
	}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func readUpload(fh *multipart.FileHeader) (data []byte, contentType string, err error) {
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err = io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, fh.Header.Get("Content-Type"), nil
}

// Signup godoc
// @Summary Create a new user account
// @Tags users
// @Accept mpfd
// @Produce json
// @Param name formData string true "display name"
// @Param email formData string true "email"
// @Param password formData string true "password"
// @Param role formData string true "role"
// @Param bio formData string true "bio"
// @Param avatar formData file true "avatar image"
// @Success 201 {object} Envelope
// @Failure 400 {object} Envelope
// @Router /api/v1/users/signup [post]
func (h *Handler) Signup(c *gin.Context) {
	name := c.PostForm("name")
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	role := c.PostForm("role")
	bio := c.PostForm("bio")

	if blank(name) || blank(email) || blank(password) || blank(role) || blank(bio) {
		fail(c, http.StatusBadRequest, "please provide all fields")
		return
	}
	avatar, err := c.FormFile("avatar")
	if err != nil {
		fail(c, http.StatusBadRequest, "please provide all fields")
		return
	}

	if _, err := h.Store.FindUserByEmail(c.Request.Context(), email); err == nil {
		fail(c, http.StatusBadRequest, "email already in use, try new credentials")
		return
	} else if !errors.Is(err, repo.ErrNotFound) {
		fail(c, http.StatusInternalServerError, "database error, try after some time")
		return
	}

	data, contentType, err := readUpload(avatar)
	if err != nil {
		fail(c, http.StatusBadRequest, "could not read avatar file")
		return
	}
	avatarURL, err := h.Media.Upload(c.Request.Context(), avatar.Filename, contentType, data)
	if err != nil {
		log.WithDD(c.Request.Context(), log.L()).Error("avatar upload failed",
			zap.Error(err), zap.String("request_id", requestID(c)))
		fail(c, http.StatusInternalServerError, "could not upload avatar")
		return
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		fail(c, http.StatusInternalServerError, "could not create account")
		return
	}

	u := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Role:         strings.TrimSpace(role),
		Bio:          strings.TrimSpace(bio),
		AvatarURL:    avatarURL,
	}
	if err := h.Store.CreateUser(c.Request.Context(), u); err != nil {
		// the unique index decides the race, not the pre-check above
		if errors.Is(err, repo.ErrDuplicateEmail) {
			fail(c, http.StatusBadRequest, "email already in use, try new credentials")
			return
		}
		fail(c, http.StatusInternalServerError, "database error, try after some time")
		return
	}

	metrics.SignupsTotal.Inc()
	go h.Events.Publish(context.WithoutCancel(c.Request.Context()), h.Exchange, queue.KeyUserRegistered,
		queue.UserRegistered{UserID: u.ID, Email: u.Email, Name: u.Name},
		requestID(c))

	u.PasswordHash = ""
	respond(c, http.StatusCreated, u, "user created successfully")
}

type signinReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signin godoc
// @Summary Authenticate and receive a session token
// @Tags users
// @Accept json
// @Produce json
// @Param payload body signinReq true "credentials"
// @Success 200 {object} Envelope
// @Failure 400 {object} Envelope
// @Router /api/v1/users/signin [post]
func (h *Handler) Signin(c *gin.Context) {
	var in signinReq
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	email := strings.TrimSpace(in.Email)
	if blank(email) || blank(in.Password) {
		fail(c, http.StatusBadRequest, "please provide all fields")
		return
	}

	// same envelope for unknown email and wrong password
	u, err := h.Store.FindUserByEmailWithPassword(c.Request.Context(), email)
	if err != nil || !security.CheckPassword(u.PasswordHash, in.Password) {
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusInternalServerError, "database error, try after some time")
			return
		}
		fail(c, http.StatusBadRequest, "invalid email or password")
		return
	}

	tok, err := security.MakeAccess(h.JWTSecret, u.ID.Hex(), u.Email, u.Role, h.AccessTTL)
	if err != nil {
		fail(c, http.StatusInternalServerError, "could not issue session token")
		return
	}
	h.setSessionCookie(c, tok, int(h.AccessTTL.Seconds()))

	u.PasswordHash = ""
	respond(c, http.StatusOK, gin.H{"token": tok, "user": u}, "sign in successful")
}

// Signout clears the session cookie. Idempotent: no active session is fine.
func (h *Handler) Signout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	respond(c, http.StatusOK, nil, "sign out successful")
}

func (h *Handler) setSessionCookie(c *gin.Context, tok string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, tok, maxAge, "/", "", h.CookieSecure, true)
}

// GetProfile returns the record the auth middleware attached; no extra lookup.
func (h *Handler) GetProfile(c *gin.Context) {
	v, _ := c.Get(currentUserKey)
	respond(c, http.StatusOK, v.(*domain.User), "user fetched successfully")
}

// UpdateProfile applies optional name/email/avatar changes. Blank values are
// ignored, never cleared.
func (h *Handler) UpdateProfile(c *gin.Context) {
	au := c.MustGet(authUserKey).(AuthUser)

	set := bson.M{}
	if name := c.PostForm("name"); !blank(name) {
		set["name"] = strings.TrimSpace(name)
	}
	if email := strings.TrimSpace(c.PostForm("email")); !blank(email) && email != au.Email {
		other, err := h.Store.FindUserByEmail(c.Request.Context(), email)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusInternalServerError, "database error, try after some time")
			return
		}
		if other != nil && other.ID != au.ID {
			fail(c, http.StatusConflict, "this email is already taken, try a new one")
			return
		}
		set["email"] = email
	}
	if fh, err := c.FormFile("avatar"); err == nil {
		data, contentType, err := readUpload(fh)
		if err != nil {
			fail(c, http.StatusBadRequest, "could not read avatar file")
			return
		}
		// the previous remote asset is left in place
		url, err := h.Media.Upload(c.Request.Context(), fh.Filename, contentType, data)
		if err != nil {
			fail(c, http.StatusInternalServerError, "could not upload avatar")
			return
		}
		set["avatar_url"] = url
	}

	if len(set) == 0 {
		v, _ := c.Get(currentUserKey)
		respond(c, http.StatusOK, v.(*domain.User), "nothing to update")
		return
	}

	u, err := h.Store.UpdateProfile(c.Request.Context(), au.ID, set)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			fail(c, http.StatusConflict, "this email is already taken, try a new one")
			return
		}
		fail(c, http.StatusInternalServerError, "database error, try after some time")
		return
	}
	respond(c, http.StatusOK, u, "user updated successfully")
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword verifies the current password before accepting the new one.
func (h *Handler) ChangePassword(c *gin.Context) {
	au := c.MustGet(authUserKey).(AuthUser)

	var in changePasswordReq
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if blank(in.CurrentPassword) || blank(in.NewPassword) {
		fail(c, http.StatusBadRequest, "please provide all fields")
		return
	}

	u, err := h.Store.FindUserByIDWithPassword(c.Request.Context(), au.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "database error, try after some time")
		return
	}
	if !security.CheckPassword(u.PasswordHash, in.CurrentPassword) {
		fail(c, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := security.HashPassword(in.NewPassword)
	if err != nil {
		fail(c, http.StatusInternalServerError, "could not change password")
		return
	}
	if err := h.Store.UpdatePassword(c.Request.Context(), au.ID, hash); err != nil {
		fail(c, http.StatusInternalServerError, "database error, try after some time")
		return
	}
	respond(c, http.StatusOK, nil, "password changed successfully")
}

type forgotPasswordReq struct {
	Email string `json:"email"`
}

// ForgotPassword godoc
// @Summary Request a password reset
// @Tags users
// @Accept json
// @Produce json
// @Param payload body forgotPasswordReq true "account email"
// @Success 200 {object} Envelope
// @Failure 404 {object} Envelope
// @Router /api/v1/users/forgot-password [post]
func (h *Handler) ForgotPassword(c *gin.Context) {
	var in forgotPasswordReq
	if err := c.ShouldBindJSON(&in); err != nil || blank(in.Email) {
		fail(c, http.StatusBadRequest, "please provide all fields")
		return
	}

	u, err := h.Store.FindUserByEmail(c.Request.Context(), strings.TrimSpace(in.Email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, "user not found")
			return
		}
		fail(c, http.StatusInternalServerError, "database error, try after some time")
		return
	}

	token, err := security.NewResetToken()
	if err != nil {
		fail(c, http.StatusInternalServerError, "could not create reset token")
		return
	}
	expiresAt := time.Now().Add(h.ResetTTL)
	if err := h.Store.SetResetToken(c.Request.Context(), u.ID, security.HashResetToken(token), expiresAt); err != nil {
		fail(c, http.StatusInternalServerError, "database error, try after some time")
		return
	}

	// the plaintext token goes out-of-band via the notifier, never in the
	// response body
	go h.Events.Publish(context.WithoutCancel(c.Request.Context()), h.Exchange, queue.KeyUserResetRequested,
		queue.PasswordResetRequested{
			UserID:    u.ID,
			Email:     u.Email,
			Name:      u.Name,
			Token:     token,
			ExpiresAt: expiresAt,
		},
		requestID(c))

	respond(c, http.StatusOK, nil, "a reset link has been sent to your email")
}

type resetPasswordReq struct {
	NewPassword string `json:"newPassword"`
}

// ResetPassword consumes a reset token: one atomic update swaps the password
// and clears the reset pair, so a used or expired token can never race in.
func (h *Handler) ResetPassword(c *gin.Context) {
	token := c.Param("token")

	var in resetPasswordReq
	if err := c.ShouldBindJSON(&in); err != nil || blank(in.NewPassword) {
		fail(c, http.StatusBadRequest, "please provide all fields")
		return
	}

	hash, err := security.HashPassword(in.NewPassword)
	if err != nil {
		fail(c, http.StatusInternalServerError, "could not reset password")
		return
	}

	u, err := h.Store.ResetPasswordByTokenHash(c.Request.Context(), security.HashResetToken(token), hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			metrics.ResetsTotal.WithLabelValues("rejected").Inc()
			fail(c, http.StatusBadRequest, "invalid or expired token")
			return
		}
		fail(c, http.StatusInternalServerError, "database error, try after some time")
		return
	}

	metrics.ResetsTotal.WithLabelValues("ok").Inc()
	respond(c, http.StatusOK, u, "password reset successfully")
}

// DeleteAccount removes the authenticated caller's record and the remote
// avatar asset derived from its URL.
func (h *Handler) DeleteAccount(c *gin.Context) {
	au := c.MustGet(authUserKey).(AuthUser)

	u, err := h.Store.DeleteUser(c.Request.Context(), au.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusBadRequest, "invalid request")
			return
		}
		fail(c, http.StatusInternalServerError, "database error, try after some time")
		return
	}

	if key := media.KeyFromURL(u.AvatarURL); key != "" {
		if err := h.Media.Delete(c.Request.Context(), key); err != nil {
			// the account is gone either way; the orphaned asset is logged
			log.WithDD(c.Request.Context(), log.L()).Error("avatar delete failed",
				zap.String("key", key),
				zap.Error(err),
				zap.String("request_id", requestID(c)))
		}
	}

	go h.Events.Publish(context.WithoutCancel(c.Request.Context()), h.Exchange, queue.KeyUserDeleted,
		queue.UserDeleted{UserID: u.ID, Email: u.Email},
		requestID(c))

	respond(c, http.StatusOK, nil, "account deleted successfully")
}

func (h *Handler) Healthz(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
