package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"deen-companion-backend/internal/auth"
	"deen-companion-backend/internal/model"
	"deen-companion-backend/internal/store"
)

type signupRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=8"`
	Name     *string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Signup registers a new account and returns an access token.
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		internalError(c, err, "failed to create account")
		return
	}

	user, err := h.store.CreateUser(c.Request.Context(), req.Email, hashed, req.Name)
	if errors.Is(err, store.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}
	if err != nil {
		internalError(c, err, "failed to create account")
		return
	}

	token, err := h.issuer.Issue(user.ID)
	if err != nil {
		internalError(c, err, "failed to issue token")
		return
	}
	c.JSON(http.StatusCreated, tokenResponse{Token: token, User: user})
}

// Login exchanges email and password for an access token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.store.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		internalError(c, err, "failed to log in")
		return
	}
	if user == nil || !auth.CheckPassword(user.HashedPassword, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, err := h.issuer.Issue(user.ID)
	if err != nil {
		internalError(c, err, "failed to issue token")
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: token, User: user})
}

// Me returns the authenticated user.
func (h *Handler) Me(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	c.JSON(http.StatusOK, user)
}

// userID is the ID of the authenticated user. Routes using it sit behind auth.Middleware.
func userID(c *gin.Context) string {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return ""
	}
	return user.ID
}

// notFoundOr answers 404 for store.ErrNotFound and 500 otherwise.
func notFoundOr(c *gin.Context, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
		return
	}
	internalError(c, err, "failed to update "+what)
}
