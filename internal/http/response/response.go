package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/netgenealogy-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondServiceError maps an apierr-tagged error to its status; plain errors get defStatus.
func RespondServiceError(c *gin.Context, err error, defStatus int, defCode string) {
	status, code := apierr.StatusOf(err, defStatus, defCode)
	RespondError(c, status, code, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
