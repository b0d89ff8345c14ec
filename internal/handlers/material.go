package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/yungbote/prepgraph-backend/internal/apperr"
  "github.com/yungbote/prepgraph-backend/internal/requestdata"
  "github.com/yungbote/prepgraph-backend/internal/services"
)

const maxUploadBytes = 50 << 20 // 50 MiB

type MaterialHandler struct {
  materialService services.StudyMaterialService
}

func NewMaterialHandler(materialService services.StudyMaterialService) *MaterialHandler {
  return &MaterialHandler{materialService: materialService}
}

func currentUserID(c *gin.Context) (uuid.UUID, error) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    return uuid.Nil, fmt.Errorf("%w: no authenticated user", apperr.ErrUnauthorized)
  }
  return rd.UserID, nil
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, error) {
  id, err := uuid.Parse(c.Param(name))
  if err != nil {
    return uuid.Nil, fmt.Errorf("%w: invalid %s", apperr.ErrInvalidArgument, name)
  }
  return id, nil
}

func (mh *MaterialHandler) Upload(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, err)
    return
  }

  c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
  fileHeader, err := c.FormFile("file")
  if err != nil {
    RespondErrorStatus(c, http.StatusBadRequest, fmt.Errorf("%w: missing file upload", apperr.ErrInvalidArgument))
    return
  }
  file, err := fileHeader.Open()
  if err != nil {
    RespondErrorStatus(c, http.StatusBadRequest, fmt.Errorf("%w: unreadable file upload", apperr.ErrInvalidArgument))
    return
  }
  defer file.Close()

  result, err := mh.materialService.Upload(c.Request.Context(), userID, services.UploadMaterialInput{
    Title:        c.PostForm("title"),
    OriginalName: fileHeader.Filename,
    MimeType:     fileHeader.Header.Get("Content-Type"),
    SizeBytes:    fileHeader.Size,
    File:         file,
  })
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondCreated(c, result)
}

func (mh *MaterialHandler) List(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, err)
    return
  }
  materials, err := mh.materialService.List(c.Request.Context(), userID)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, materials)
}

func (mh *MaterialHandler) Get(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, err)
    return
  }
  materialID, err := pathUUID(c, "materialID")
  if err != nil {
    RespondError(c, err)
    return
  }
  result, err := mh.materialService.Get(c.Request.Context(), userID, materialID)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, result)
}

func (mh *MaterialHandler) Retry(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, err)
    return
  }
  materialID, err := pathUUID(c, "materialID")
  if err != nil {
    RespondError(c, err)
    return
  }
  result, err := mh.materialService.Retry(c.Request.Context(), userID, materialID)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, result)
}

func (mh *MaterialHandler) Delete(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, err)
    return
  }
  materialID, err := pathUUID(c, "materialID")
  if err != nil {
    RespondError(c, err)
    return
  }
  if err := mh.materialService.Delete(c.Request.Context(), userID, materialID); err != nil {
    RespondError(c, err)
    return
  }
  RespondMessage(c, "material deleted")
}
