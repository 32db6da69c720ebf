package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"knowledgehub/internal/app"
	"knowledgehub/internal/pkg/filetype"
	"knowledgehub/internal/transport/http/middleware"
	"knowledgehub/internal/transport/http/response"
)

// UploadHandler exposes the resumable chunked upload pipeline over
// HTTP as the single documented multipart contract: one POST per
// chunk carrying both the chunk's bytes and its metadata fields,
// matching manshu's uploadChunk endpoint rather than splitting
// registration from the first chunk.
type UploadHandler struct {
	uploadService *app.UploadService
}

func NewUploadHandler(uploadService *app.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// UploadChunk accepts one multipart/form-data chunk: a "chunk" file
// part plus file_md5/file_name/total_size/chunk_index form fields.
// Chunk index 0 is gated on file type before anything is stored or
// any FileRecord is created, matching manshu's UploadController
// calling FileTypeValidationService before the service layer ever
// sees the request.
func (h *UploadHandler) UploadChunk(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	fingerprint := strings.ToLower(strings.TrimSpace(c.PostForm("file_md5")))
	fileName := c.PostForm("file_name")
	totalSize, sizeErr := strconv.ParseInt(c.PostForm("total_size"), 10, 64)
	chunkIndex, idxErr := strconv.Atoi(c.PostForm("chunk_index"))
	if fingerprint == "" || fileName == "" || sizeErr != nil || idxErr != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing or invalid upload fields")
		return
	}

	if chunkIndex == 0 {
		result := filetype.Validate(fileName)
		if !result.Valid {
			response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFileType, result.Message)
			return
		}
	}

	fileHeader, err := c.FormFile("chunk")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing chunk file part")
		return
	}
	chunkFile, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "cannot read chunk file part")
		return
	}
	defer chunkFile.Close()

	result, err := h.uploadService.UploadChunk(c.Request.Context(), app.UploadChunkInput{
		Fingerprint: fingerprint,
		UserID:      userID,
		FileName:    fileName,
		TotalSize:   totalSize,
		ChunkIndex:  chunkIndex,
		ScopeTag:    c.PostForm("scope_tag"),
		IsPublic:    c.PostForm("is_public") == "true",
		Body:        chunkFile,
		Size:        fileHeader.Size,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrUploadAlreadyMerged):
			response.Error(c, http.StatusBadRequest, response.CodeUploadMerged, err.Error())
		case errors.Is(err, app.ErrChunkIndexOutOfRange):
			response.Error(c, http.StatusBadRequest, response.CodeChunkOutOfRange, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload chunk failed")
		}
		return
	}

	response.OK(c, result)
}

func (h *UploadHandler) Status(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	fingerprint := c.Query("file_md5")
	result, err := h.uploadService.UploadStatus(c.Request.Context(), userID, fingerprint)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrFileNotFound):
			response.Error(c, http.StatusNotFound, response.CodeFileNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload status failed")
		}
		return
	}

	response.OK(c, result)
}

type mergeUploadRequest struct {
	FileMD5  string `json:"fileMd5" binding:"required"`
	FileName string `json:"fileName"`
}

func (h *UploadHandler) Merge(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req mergeUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.uploadService.MergeUpload(c.Request.Context(), userID, req.FileMD5, req.FileName)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrFileNotFound):
			response.Error(c, http.StatusNotFound, response.CodeFileNotFound, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrFileIncomplete):
			response.Error(c, http.StatusBadRequest, response.CodeUploadIncomplete, err.Error())
		case errors.Is(err, app.ErrChunkMissing), errors.Is(err, app.ErrMergeVerifyFailed):
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "merge upload failed")
		}
		return
	}

	response.OK(c, gin.H{
		"file":         result.File,
		"download_url": result.DownloadURL,
	})
}

// SupportedTypes lists the file extensions the upload gate accepts,
// for clients to pre-filter before attempting an upload.
func (h *UploadHandler) SupportedTypes(c *gin.Context) {
	response.OK(c, gin.H{"extensions": filetype.SupportedExtensions()})
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok
}
