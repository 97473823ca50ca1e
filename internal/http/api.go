package http

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"streamtube/internal/domain"
	"streamtube/internal/service"
	"streamtube/internal/token"
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users    service.UserService
	profiles service.ProfileService
	codec    *token.Codec
	tempDir  string
}

func NewHandler(users service.UserService, profiles service.ProfileService, codec *token.Codec, tempDir string) *Handler {
	registerValidations()
	return &Handler{
		users:    users,
		profiles: profiles,
		codec:    codec,
		tempDir:  tempDir,
	}
}

var usernamePattern = regexp.MustCompile(`(?i)^[a-z0-9_]{3,30}$`)

func registerValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api/v1")
	api.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})

	users := api.Group("/users")
	{
		users.POST("/register", h.register)
		users.POST("/login", h.login)
		users.POST("/refresh-token", h.refreshToken)
		users.GET("/c/:username", h.optionalAuth(), h.channelProfile)

		authed := users.Group("", h.requireAuth())
		authed.POST("/logout", h.logout)
		authed.POST("/change-password", h.changePassword)
		authed.GET("/current-user", h.currentUser)
		authed.PATCH("/update-account", h.updateAccount)
		authed.PATCH("/avatar", h.updateAvatar)
		authed.PATCH("/cover-image", h.updateCoverImage)
		authed.POST("/c/:username/subscribe", h.subscribe)
		authed.DELETE("/c/:username/subscribe", h.unsubscribe)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type registerRequest struct {
	FullName string `form:"fullName" binding:"required"`
	Email    string `form:"email" binding:"required,email"`
	Username string `form:"username" binding:"required,username"`
	Password string `form:"password" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	avatarHeader, err := c.FormFile("avatar")
	if err != nil {
		writeError(c, http.StatusBadRequest, "avatar is required")
		return
	}
	avatarPath, err := h.saveUpload(c, avatarHeader)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to receive avatar")
		return
	}
	defer os.Remove(avatarPath)

	var coverPath string
	if coverHeader, err := c.FormFile("coverImage"); err == nil {
		coverPath, err = h.saveUpload(c, coverHeader)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "failed to receive cover image")
			return
		}
		defer os.Remove(coverPath)
	}

	user, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		FullName:       req.FullName,
		Email:          req.Email,
		Username:       req.Username,
		Password:       req.Password,
		AvatarPath:     avatarPath,
		CoverImagePath: coverPath,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, userToResponse(user))
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	user, pair, err := h.users.Login(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	setAuthCookies(c, pair)
	c.JSON(http.StatusOK, loginResponse{
		User:         userToResponse(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) refreshToken(c *gin.Context) {
	// cookie first, request body as fallback
	incoming, err := c.Cookie(refreshCookie)
	if err != nil || incoming == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			incoming = req.RefreshToken
		}
	}

	pair, err := h.users.Refresh(c.Request.Context(), incoming)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	setAuthCookies(c, pair)
	c.JSON(http.StatusOK, tokenPairToResponse(pair))
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.users.Logout(c.Request.Context(), currentUserID(c)); err != nil {
		writeDomainError(c, err)
		return
	}

	clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"loggedOut": true})
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), currentUserID(c), req.OldPassword, req.NewPassword); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": true})
}

func (h *Handler) currentUser(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

type updateAccountRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}

func (h *Handler) updateAccount(c *gin.Context) {
	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.UpdateAccount(c.Request.Context(), currentUserID(c), req.FullName, req.Email)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) updateAvatar(c *gin.Context) {
	h.updateMedia(c, "avatar", h.users.UpdateAvatar)
}

func (h *Handler) updateCoverImage(c *gin.Context) {
	h.updateMedia(c, "coverImage", h.users.UpdateCoverImage)
}

func (h *Handler) updateMedia(c *gin.Context, field string, update func(ctx context.Context, userID int64, localPath string) (*domain.User, error)) {
	header, err := c.FormFile(field)
	if err != nil {
		writeError(c, http.StatusBadRequest, field+" file is required")
		return
	}
	localPath, err := h.saveUpload(c, header)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to receive "+field)
		return
	}
	defer os.Remove(localPath)

	user, err := update(c.Request.Context(), currentUserID(c), localPath)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) channelProfile(c *gin.Context) {
	profile, err := h.profiles.GetChannelProfile(c.Request.Context(), currentUserID(c), c.Param("username"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileToResponse(profile))
}

func (h *Handler) subscribe(c *gin.Context) {
	if err := h.profiles.Subscribe(c.Request.Context(), currentUserID(c), c.Param("username")); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribed": true})
}

func (h *Handler) unsubscribe(c *gin.Context) {
	if err := h.profiles.Unsubscribe(c.Request.Context(), currentUserID(c), c.Param("username")); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribed": false})
}

func (h *Handler) saveUpload(c *gin.Context, header *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(h.tempDir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(h.tempDir, uuid.NewString()+filepath.Ext(header.Filename))
	if err := c.SaveUploadedFile(header, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func setAuthCookies(c *gin.Context, pair *domain.TokenPair) {
	setTokenCookie(c, accessCookie, pair.AccessToken, pair.AccessExpiresAt)
	setTokenCookie(c, refreshCookie, pair.RefreshToken, pair.RefreshExpiresAt)
}

func setTokenCookie(c *gin.Context, name, value string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetCookie(name, value, maxAge, "/", "", true, true)
}

func clearAuthCookies(c *gin.Context) {
	c.SetCookie(accessCookie, "", -1, "/", "", true, true)
	c.SetCookie(refreshCookie, "", -1, "/", "", true, true)
}

func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		// never reveal whether a token exists or why it was rejected
		writeError(c, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal server error")
	}
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"code": status, "message": message})
}

type UserResponse struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	FullName      string `json:"fullName"`
	AvatarURL     string `json:"avatarURL"`
	CoverImageURL string `json:"coverImageURL,omitempty"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

type loginResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type TokenPairResponse struct {
	AccessToken      string `json:"accessToken"`
	AccessExpiresAt  string `json:"accessExpiresAt"`
	RefreshToken     string `json:"refreshToken"`
	RefreshExpiresAt string `json:"refreshExpiresAt"`
}

type ChannelProfileResponse struct {
	Username          string `json:"username"`
	FullName          string `json:"fullName"`
	AvatarURL         string `json:"avatarURL"`
	CoverImageURL     string `json:"coverImageURL,omitempty"`
	SubscriberCount   int64  `json:"subscriberCount"`
	SubscribedToCount int64  `json:"subscribedToCount"`
	IsSubscribed      bool   `json:"isSubscribed"`
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		CreatedAt:     user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     user.UpdatedAt.Format(time.RFC3339),
	}
}

func tokenPairToResponse(pair *domain.TokenPair) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt.Format(time.RFC3339),
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt.Format(time.RFC3339),
	}
}

func profileToResponse(profile *domain.ChannelProfile) ChannelProfileResponse {
	return ChannelProfileResponse{
		Username:          profile.Username,
		FullName:          profile.FullName,
		AvatarURL:         profile.AvatarURL,
		CoverImageURL:     profile.CoverImageURL,
		SubscriberCount:   profile.SubscriberCount,
		SubscribedToCount: profile.SubscribedToCount,
		IsSubscribed:      profile.IsSubscribed,
	}
}
