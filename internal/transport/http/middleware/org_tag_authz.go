package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"knowledgehub/internal/model"
	"knowledgehub/internal/repository"
	"knowledgehub/internal/transport/http/response"
)

var (
	writePathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/upload/chunk`),
		regexp.MustCompile(`/upload/merge`),
		regexp.MustCompile(`/upload/status`),
		regexp.MustCompile(`/documents/uploads`),
		regexp.MustCompile(`/documents/accessible`),
		regexp.MustCompile(`/documents/download`),
		regexp.MustCompile(`/search/hybrid`),
	}
	documentFingerprintPath = regexp.MustCompile(`/documents/([a-fA-F0-9]{32})`)
)

// OrgTagAuthz enforces organization-tag scoped access to a resource
// identified in the request path. Grounded line-for-line on manshu's
// OrgTagAuthorizationFilter:
//   - write-path requests (chunk/merge/status upload, list-uploads,
//     accessible/download browsing, hybrid search) and DELETE of a
//     document by fingerprint are let through unchecked — ownership
//     and visibility are enforced inside the handler itself for these,
//     not here;
//   - a referenced resource that doesn't exist is a 404;
//   - public resources, and resources with no org tag or the DEFAULT
//     tag, are allowed through for any authenticated caller;
//   - the resource owner and any ADMIN are allowed through;
//   - a PRIVATE_ prefixed org tag is refused to everyone else (the
//     owner and ADMIN have already been let through above);
//   - otherwise the caller's own assigned org tags (not
//     ancestor-expanded — a direct, literal membership check) must
//     contain the resource's org tag.
func OrgTagAuthz(fileRepo *repository.FileRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		for _, p := range writePathPatterns {
			if p.MatchString(path) {
				c.Next()
				return
			}
		}
		if c.Request.Method == http.MethodDelete && documentFingerprintPath.MatchString(path) {
			c.Next()
			return
		}

		resourceID := extractResourceID(c, path)
		if resourceID == "" {
			c.Next()
			return
		}

		file, err := fileRepo.GetByFingerprint(resourceID)
		if err != nil {
			response.Error(c, 500, response.CodeInternalServer, "resource lookup failed")
			c.Abort()
			return
		}

		if file == nil {
			response.Error(c, 404, response.CodeFileNotFound, "resource not found")
			c.Abort()
			return
		}

		if file.IsPublic || file.ScopeTag == "" || file.ScopeTag == model.DefaultTagID {
			c.Next()
			return
		}

		userID, ok := c.Get(ContextUserIDKey)
		if !ok {
			response.Error(c, 401, response.CodeUnauthorized, "authentication required")
			c.Abort()
			return
		}
		role, _ := c.Get(ContextRoleKey)

		if uid, ok := userID.(uint); ok && uid == file.UserID {
			c.Next()
			return
		}
		if role == model.RoleAdmin {
			c.Next()
			return
		}

		if strings.HasPrefix(file.ScopeTag, model.PrivateTagPrefix) {
			response.Error(c, 403, response.CodeForbidden, "resource is private")
			c.Abort()
			return
		}

		orgTags, _ := c.Get(ContextOrgTagsKey)
		tags, _ := orgTags.([]string)
		if !containsTag(tags, file.ScopeTag) {
			response.Error(c, 403, response.CodeForbidden, "not a member of the resource's organization tag")
			c.Abort()
			return
		}
		c.Next()
	}
}

func extractResourceID(c *gin.Context, path string) string {
	if m := documentFingerprintPath.FindStringSubmatch(path); len(m) == 2 {
		return m[1]
	}
	return ""
}

func containsTag(tags []string, target string) bool {
	for _, t := range tags {
		if t == target {
			return true
		}
	}
	return false
}
