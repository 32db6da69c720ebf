package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeUnauthorized       = 40100
	CodeForbidden          = 40300
	CodeNotFound           = 40400
	CodeInternalServer     = 50000
	CodeUsernameExists     = 40001
	CodeInvalidCredentials = 40101
	CodeSessionNotFound    = 40401

	CodeTagExists           = 40003
	CodeTagNotFound         = 40402
	CodeUploadIncomplete    = 40004
	CodeUploadMerged        = 40005
	CodeChunkOutOfRange     = 40006
	CodeFileNotFound        = 40403
	CodeUnsupportedFileType = 40007
	CodeTagCycle            = 40008
	CodeTagInUse            = 40009
	CodeUserNotFound        = 40404
	CodeInvalidRefreshToken = 40102
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
