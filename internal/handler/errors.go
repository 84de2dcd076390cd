package handler

import (
	"errors"
	"net/http"

	"alumniportal/pkg/apperror"
	"alumniportal/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondError maps business error codes onto HTTP statuses. Anything that is
// not an apperror is an infrastructure failure and safe to retry, since all
// mutating operations are idempotent or transactional.
func respondError(c *gin.Context, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case apperror.CodeValidation:
		status = http.StatusBadRequest
	case apperror.CodeNotFound:
		status = http.StatusNotFound
	case apperror.CodeFeeUnavailable:
		status = http.StatusUnprocessableEntity
	case apperror.CodeInvalidTransition, apperror.CodePaymentRequired,
		apperror.CodeAlreadySettled, apperror.CodeInsufficientFunds, apperror.CodeConflict:
		status = http.StatusConflict
	case apperror.CodeUnauthorizedPayment, apperror.CodeBranchScope:
		status = http.StatusForbidden
	}

	c.JSON(status, response.ErrorCoded(status, appErr.Code, appErr.Message, appErr.Meta))
}
