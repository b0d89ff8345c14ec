package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/yungbote/prepgraph-backend/internal/apperr"
  "github.com/yungbote/prepgraph-backend/internal/services"
)

type AuthHandler struct {
  authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
  return &AuthHandler{authService: authService}
}

func (ah *AuthHandler) Register(c *gin.Context) {
  var req struct {
    Email     string `json:"email"`
    Password  string `json:"password"`
    FirstName string `json:"first_name"`
    LastName  string `json:"last_name"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondErrorStatus(c, http.StatusBadRequest, fmt.Errorf("%w: invalid request body", apperr.ErrInvalidArgument))
    return
  }
  user, err := ah.authService.RegisterUser(c.Request.Context(), services.RegisterUserInput{
    Email:     req.Email,
    Password:  req.Password,
    FirstName: req.FirstName,
    LastName:  req.LastName,
  })
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondCreated(c, user)
}

func (ah *AuthHandler) Login(c *gin.Context) {
  var req struct {
    Email    string `json:"email"`
    Password string `json:"password"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondErrorStatus(c, http.StatusBadRequest, fmt.Errorf("%w: invalid request body", apperr.ErrInvalidArgument))
    return
  }
  accessToken, refreshToken, err := ah.authService.LoginUser(c.Request.Context(), req.Email, req.Password)
  if err != nil {
    RespondErrorStatus(c, http.StatusUnauthorized, err)
    return
  }
  RespondOK(c, gin.H{
    "access_token":  accessToken,
    "refresh_token": refreshToken,
    "expires_in":    int(ah.authService.GetAccessTTL().Seconds()),
  })
}

func (ah *AuthHandler) Refresh(c *gin.Context) {
  accessToken, refreshToken, err := ah.authService.RefreshUser(c.Request.Context())
  if err != nil {
    RespondErrorStatus(c, http.StatusUnauthorized, err)
    return
  }
  RespondOK(c, gin.H{
    "access_token":  accessToken,
    "refresh_token": refreshToken,
    "expires_in":    int(ah.authService.GetAccessTTL().Seconds()),
  })
}

func (ah *AuthHandler) Logout(c *gin.Context) {
  if err := ah.authService.LogoutUser(c.Request.Context()); err != nil {
    RespondError(c, err)
    return
  }
  RespondMessage(c, "logged out")
}
