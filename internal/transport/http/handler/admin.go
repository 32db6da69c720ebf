package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"knowledgehub/internal/app"
	"knowledgehub/internal/model"
	"knowledgehub/internal/repository"
	"knowledgehub/internal/transport/http/response"
)

// AdminHandler covers organization-tag administration and the
// read-only roster views an admin needs to manage them. Mounted
// behind AuthJWT+RequireAdmin.
type AdminHandler struct {
	tagService *app.TagService
	userRepo   *repository.UserRepository
}

func NewAdminHandler(tagService *app.TagService, userRepo *repository.UserRepository) *AdminHandler {
	return &AdminHandler{tagService: tagService, userRepo: userRepo}
}

type createTagRequest struct {
	ID          string `json:"id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ParentID    string `json:"parent_id"`
}

func (h *AdminHandler) CreateTag(c *gin.Context) {
	adminID, _ := getUserIDFromContext(c)

	var req createTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	tag, err := h.tagService.CreateTag(app.CreateTagInput{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
		CreatedBy:   adminID,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrTagIDInvalid):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrTagExists):
			response.Error(c, http.StatusBadRequest, response.CodeTagExists, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create tag failed")
		}
		return
	}

	response.OK(c, tag)
}

func (h *AdminHandler) ListTags(c *gin.Context) {
	tags, err := h.tagService.ListTags()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list tags failed")
		return
	}
	response.OK(c, tags)
}

type updateTagRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    string `json:"parent_id"`
}

func (h *AdminHandler) UpdateTag(c *gin.Context) {
	id := c.Param("id")

	var req updateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	tag, err := h.tagService.UpdateTag(app.UpdateTagInput{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrTagNotFound):
			response.Error(c, http.StatusNotFound, response.CodeTagNotFound, err.Error())
		case errors.Is(err, app.ErrTagHasCycle):
			response.Error(c, http.StatusBadRequest, response.CodeTagCycle, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "update tag failed")
		}
		return
	}
	response.OK(c, tag)
}

func (h *AdminHandler) DeleteTag(c *gin.Context) {
	id := c.Param("id")
	if err := h.tagService.DeleteTag(id); err != nil {
		switch {
		case errors.Is(err, app.ErrTagInUse):
			response.Error(c, http.StatusBadRequest, response.CodeTagInUse, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete tag failed")
		}
		return
	}
	response.OK(c, gin.H{"deleted_tag_id": id})
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	role := c.Query("role")
	if role == "" {
		role = model.RoleUser
	}
	users, err := h.userRepo.ListByRole(role)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list users failed")
		return
	}
	response.OK(c, users)
}

func (h *AdminHandler) CountUsers(c *gin.Context) {
	role := c.Query("role")
	if role == "" {
		role = model.RoleUser
	}
	count, err := h.userRepo.CountByRole(role)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "count users failed")
		return
	}
	response.OK(c, gin.H{"role": role, "count": count})
}

type assignUserTagsRequest struct {
	Tags []string `json:"tags"`
}

// AssignUserTags replaces a user's assigned org tags, admin-only
// reassignment matching manshu's UserController.updateUserOrgTags.
func (h *AdminHandler) AssignUserTags(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid user id")
		return
	}

	var req assignUserTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	user, err := h.tagService.AssignUserTags(uint(userID), req.Tags)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUserNotFound):
			response.Error(c, http.StatusNotFound, response.CodeUserNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "assign user tags failed")
		}
		return
	}
	response.OK(c, user)
}
