package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gravadigital/polls-api/internal/domain/poll"
	"github.com/gravadigital/polls-api/internal/logger"
	"github.com/gravadigital/polls-api/internal/response"
)

// StatusFor maps a failure code to its HTTP status
func StatusFor(code poll.Code) int {
	switch code {
	case poll.CodeValidation:
		return http.StatusBadRequest
	case poll.CodeUnauthenticated:
		return http.StatusUnauthorized
	case poll.CodeUnauthorized:
		return http.StatusForbidden
	case poll.CodeNotFound, poll.CodePollNotFound:
		return http.StatusNotFound
	case poll.CodeAlreadyVoted:
		return http.StatusConflict
	case poll.CodePollExpired:
		return http.StatusGone
	case poll.CodeCreationFailed, poll.CodeDeletionFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusServiceUnavailable
	}
}

// writeError renders a typed failure. Server side failures are logged with
// their cause and answered with a generic message.
func writeError(c *gin.Context, err error) {
	code := poll.CodeOf(err)
	status := StatusFor(code)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.HTTP().Error("request failed",
			"request_id", c.GetString("request_id"),
			"path", c.FullPath(),
			"code", code,
			"error", err)
		message = genericMessage(code)
	} else if typed := (*poll.Error)(nil); errors.As(err, &typed) && typed.Message != "" {
		message = typed.Message
	}

	response.ErrorResponseWithCode(c, status, string(code), message)
}

func genericMessage(code poll.Code) string {
	switch code {
	case poll.CodeCreationFailed:
		return "Could not create the poll, please try again"
	case poll.CodeDeletionFailed:
		return "Could not delete the poll, please try again"
	default:
		return "The service is temporarily unavailable, please try again"
	}
}
