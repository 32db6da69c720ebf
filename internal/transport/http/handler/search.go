package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"knowledgehub/internal/app"
	"knowledgehub/internal/transport/http/response"
)

// SearchHandler exposes the permissioned hybrid search surface.
type SearchHandler struct {
	searchService *app.HybridSearchService
}

func NewSearchHandler(searchService *app.HybridSearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

func (h *SearchHandler) Hybrid(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	query := c.Query("query")
	if query == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing query parameter query")
		return
	}

	k := 10
	if raw := c.Query("topK"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			k = parsed
		}
	}

	results, err := h.searchService.SearchWithPermission(c.Request.Context(), userID, query, k)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "search failed")
		return
	}

	response.OK(c, results)
}
