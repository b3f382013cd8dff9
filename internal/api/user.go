package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/auth"
	"github.com/lalith-99/parabrain/internal/middleware"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/lalith-99/parabrain/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserHandler serves /v1/users. Create and Login are public: they are how
// a caller gets a token in the first place.
type UserHandler struct {
	repo      repository.UserRepository
	convs     repository.ConversationStore
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewUserHandler(repo repository.UserRepository, convs repository.ConversationStore, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *UserHandler {
	return &UserHandler{repo: repo, convs: convs, jwtSecret: jwtSecret, tokenTTL: tokenTTL, logger: logger}
}

type createUserRequest struct {
	Name      string  `json:"name" binding:"required"`
	Email     string  `json:"email" binding:"required,email"`
	Password  string  `json:"password" binding:"required"`
	AvatarURL *string `json:"avatar_url"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// loginResponse carries the token only when JWT_SECRET is configured.
type loginResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token,omitempty"`
}

// Create handles POST /v1/users
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, h.logger, "failed to create user", err)
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	// bcrypt salts every hash and DefaultCost keeps a login around 100ms:
	// fine for a user, slow for someone guessing millions of passwords.
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, h.logger, "failed to create user", err)
		return
	}

	user := models.User{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		AvatarURL:    req.AvatarURL,
	}
	// The email check above races with concurrent signups; the unique
	// index turns the loser into ErrDuplicate, which maps to 409.
	if err := h.repo.Create(c.Request.Context(), &user); err != nil {
		respondError(c, h.logger, "failed to create user", err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Login handles POST /v1/users/login
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, h.logger, "login failed", err)
		return
	}

	// Same answer for unknown email and wrong password, so the endpoint
	// can't be used to find out which emails are registered.
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	resp := loginResponse{User: user}
	if h.jwtSecret != "" {
		resp.Token, err = auth.GenerateToken(user.ID, user.Email, h.jwtSecret, h.tokenTTL)
		if err != nil {
			respondError(c, h.logger, "login failed", err)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

// List handles GET /v1/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.repo.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "failed to list users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Get handles GET /v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id", "user")
	if !ok {
		return
	}

	user, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "failed to get user", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// Update handles PUT /v1/users/:id
//
// Only the fields present in the body change. A "password" field is
// hashed here so plain text never reaches the store.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id", "user")
	if !ok {
		return
	}
	if forbidOtherUser(c, middleware.GetUserID(c), id) {
		return
	}

	var patch models.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if name, set := patch.Name.Get(); set && name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
		return
	}
	if pw, set := patch.Password.Get(); set {
		if pw == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must not be empty"})
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			respondError(c, h.logger, "failed to update user", err)
			return
		}
		patch.PasswordHash = models.Some(string(hash))
		patch.Password = models.Optional[string]{}
	}

	user, err := h.repo.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, h.logger, "failed to update user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Delete handles DELETE /v1/users/:id
//
// Conversations may live in a different backend from the entities, so
// they are removed explicitly before the user row cascades the rest.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id", "user")
	if !ok {
		return
	}
	if forbidOtherUser(c, middleware.GetUserID(c), id) {
		return
	}

	user, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "failed to delete user", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	if err := h.convs.DeleteByUser(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "failed to delete user", err)
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		respondError(c, h.logger, "failed to delete user", err)
		return
	}
	c.Status(http.StatusNoContent)
}
