package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"knowledgehub/internal/app"
	"knowledgehub/internal/transport/http/middleware"
	"knowledgehub/internal/transport/http/response"
)

// DocumentHandler covers listing, deleting, and downloading a user's
// own uploaded documents, plus browsing everything else the caller's
// effective org tags make visible.
type DocumentHandler struct {
	uploadService *app.UploadService
	tagService    *app.TagService
}

func NewDocumentHandler(uploadService *app.UploadService, tagService *app.TagService) *DocumentHandler {
	return &DocumentHandler{uploadService: uploadService, tagService: tagService}
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	files, err := h.uploadService.ListFiles(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, files)
}

// Accessible lists every merged document the caller can see, not
// just the ones they uploaded: their own, anything public, and
// anything scoped to a tag in their ancestor-expanded effective set.
func (h *DocumentHandler) Accessible(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	tags, err := h.tagService.EffectiveTags(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "resolve effective tags failed")
		return
	}

	files, err := h.uploadService.ListAccessible(userID, tags)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list accessible documents failed")
		return
	}
	response.OK(c, files)
}

// Download resolves a document by its display name and returns a
// presigned URL for its merged object, scoped by the caller's
// effective org tags the same way Accessible is.
func (h *DocumentHandler) Download(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	fileName := c.Query("fileName")
	if fileName == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "fileName query parameter required")
		return
	}

	tags, err := h.tagService.EffectiveTags(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "resolve effective tags failed")
		return
	}

	url, err := h.uploadService.DownloadURL(c.Request.Context(), userID, tags, fileName)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrFileNotFound):
			response.Error(c, http.StatusNotFound, response.CodeFileNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "presign download failed")
		}
		return
	}
	response.OK(c, gin.H{"download_url": url})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	roleAny, _ := c.Get(middleware.ContextRoleKey)
	role, _ := roleAny.(string)

	tags, err := h.tagService.EffectiveTags(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "resolve effective tags failed")
		return
	}

	fingerprint := c.Param("fingerprint")
	if err := h.uploadService.DeleteFile(c.Request.Context(), userID, role, tags, fingerprint); err != nil {
		switch {
		case errors.Is(err, app.ErrFileNotFound):
			response.Error(c, http.StatusNotFound, response.CodeFileNotFound, err.Error())
		case errors.Is(err, app.ErrForbidden):
			response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}
	response.OK(c, gin.H{"deleted_fingerprint": fingerprint})
}
