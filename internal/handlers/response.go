package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/yungbote/prepgraph-backend/internal/apperr"
)

// Envelope is the uniform response shape: exactly one of Data or Error is
// set, keyed off Success.
type Envelope struct {
  Success bool   `json:"success"`
  Data    any    `json:"data,omitempty"`
  Error   string `json:"error,omitempty"`
  Message string `json:"message,omitempty"`
}

func RespondOK(c *gin.Context, data any) {
  c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func RespondCreated(c *gin.Context, data any) {
  c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

func RespondMessage(c *gin.Context, message string) {
  c.JSON(http.StatusOK, Envelope{Success: true, Message: message})
}

// RespondError maps domain sentinels onto HTTP status codes; anything else is
// a 500 with the raw message.
func RespondError(c *gin.Context, err error) {
  status := http.StatusInternalServerError
  switch {
  case errors.Is(err, apperr.ErrInvalidArgument):
    status = http.StatusBadRequest
  case errors.Is(err, apperr.ErrUnauthorized):
    status = http.StatusForbidden
  case errors.Is(err, apperr.ErrNotFound):
    status = http.StatusNotFound
  }
  RespondErrorStatus(c, status, err)
}

func RespondErrorStatus(c *gin.Context, status int, err error) {
  msg := "unknown error"
  if err != nil {
    msg = err.Error()
  }
  c.JSON(status, Envelope{Success: false, Error: msg})
}
