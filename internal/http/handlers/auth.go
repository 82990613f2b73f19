package handlers

import (
	"net/http"
	"strings"
	"time"

	"shuttle/internal/domain"
	"shuttle/internal/http/middleware"
	"shuttle/internal/repositories"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AccountStore is the slice of DriverAccountRepository the auth handlers use.
type AccountStore interface {
	GetByLogin(login string) (repositories.DriverAccount, error)
	Create(acc repositories.DriverAccount) (repositories.DriverAccount, error)
	SetConfirmed(login string, confirmed bool) error
}

type AuthHandler struct {
	Accounts AccountStore
	Secret   []byte
	TTL      time.Duration
	Now      func() time.Time
}

// AccountResponse is the driver payload returned by login and register.
type AccountResponse struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
	Confirmed   bool   `json:"confirmed"`
}

func toAccountResponse(acc repositories.DriverAccount) AccountResponse {
	return AccountResponse{ID: acc.ID, Login: acc.Login, DisplayName: acc.DisplayName, Confirmed: acc.Confirmed}
}

func (h AuthHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /api/auth/login
func (h AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !BindJSONOrError(c, &req) {
		return
	}

	acc, err := h.Accounts.GetByLogin(req.Login)
	if domain.IsNotFound(err) {
		respondError(c, http.StatusUnauthorized, "unauthorized", "wrong login or password", nil)
		return
	}
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
		respondError(c, http.StatusUnauthorized, "unauthorized", "wrong login or password", nil)
		return
	}

	ttl := h.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	token, err := middleware.SignToken(h.Secret, middleware.DriverClaims{
		DriverID:  acc.Login,
		Name:      acc.DisplayName,
		Confirmed: acc.Confirmed,
	}, ttl, h.now())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "failed to issue token", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":  token,
		"driver": toAccountResponse(acc),
	})
}

type registerRequest struct {
	Login       string `json:"login" binding:"required"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password" binding:"required,min=6"`
}

// POST /api/auth/register. New accounts start unconfirmed.
func (h AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	req.Login = strings.TrimSpace(req.Login)

	if _, err := h.Accounts.GetByLogin(req.Login); err == nil {
		RespondDomainError(c, domain.ConflictError{Resource: "driver account", Msg: "login is already registered"})
		return
	} else if !domain.IsNotFound(err) {
		RespondDomainError(c, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "failed to hash password", err)
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = req.Login
	}
	acc, err := h.Accounts.Create(repositories.DriverAccount{
		Login:        req.Login,
		PasswordHash: string(hash),
		DisplayName:  name,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "registered",
		"driver":  toAccountResponse(acc),
	})
}

type confirmationRequest struct {
	Confirmed *bool `json:"confirmed" binding:"required"`
}

// PUT /api/admin/accounts/:login/confirmation
func (h AuthHandler) SetConfirmation(c *gin.Context) {
	var req confirmationRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	login := strings.TrimSpace(c.Param("login"))
	if err := h.Accounts.SetConfirmed(login, *req.Confirmed); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"login": login, "confirmed": *req.Confirmed})
}
