package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/siteworks-dev/siteworks/boq"
	"github.com/siteworks-dev/siteworks/middleware"
	"github.com/siteworks-dev/siteworks/model"
	"github.com/siteworks-dev/siteworks/pkg/logger"
	"github.com/siteworks-dev/siteworks/service"
)

type BOQHandler struct {
	ingest *service.IngestService
	store  service.Store
}

func NewBOQHandler(ingest *service.IngestService, store service.Store) *BOQHandler {
	return &BOQHandler{
		ingest: ingest,
		store:  store,
	}
}

// Upload handles a BOQ file upload for a project
func (h *BOQHandler) Upload(c *gin.Context) {
	projectID := c.Param("id")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Project ID required"})
		return
	}

	uploadType, ok := model.ParseUploadType(c.PostForm("type"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Type must be contractor or sub_contractor"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	ctx := context.WithValue(c.Request.Context(), logger.ProjectIDKey, projectID)

	result, err := h.ingest.Ingest(ctx, service.IngestRequest{
		ProjectID:  projectID,
		Type:       uploadType,
		FileName:   header.Filename,
		Data:       data,
		UploadedBy: middleware.GetUsername(c),
	})
	if err != nil {
		status, msg := ingestErrorResponse(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ingestErrorResponse distinguishes "what was wrong with the file" from
// "why the system could not save the result".
func ingestErrorResponse(err error) (int, string) {
	var formatErr *boq.FormatError
	var structErr *boq.StructuralError
	var precondErr *service.PreconditionError

	switch {
	case errors.As(err, &formatErr):
		return http.StatusBadRequest, formatErr.Msg
	case errors.As(err, &structErr):
		return http.StatusBadRequest, structErr.Msg
	case errors.As(err, &precondErr):
		return http.StatusConflict, precondErr.Msg
	default:
		return http.StatusInternalServerError, "Failed to process BOQ: " + err.Error()
	}
}

// GetDocument returns the current source document for a project and type
func (h *BOQHandler) GetDocument(c *gin.Context) {
	projectID := c.Param("id")

	uploadType, ok := model.ParseUploadType(c.Param("type"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Type must be contractor or sub_contractor"})
		return
	}

	doc, err := h.store.GetSourceDocument(c.Request.Context(), projectID, uploadType)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No BOQ uploaded for this project and type"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load document: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, doc)
}

// ListPhases returns the phases of a project for one variant
func (h *BOQHandler) ListPhases(c *gin.Context) {
	projectID := c.Param("id")

	uploadType, ok := model.ParseUploadType(c.Query("type"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Type must be contractor or sub_contractor"})
		return
	}

	phases, err := h.store.ListPhases(c.Request.Context(), projectID, model.KindForUpload(uploadType))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load phases: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"phases": phases})
}
