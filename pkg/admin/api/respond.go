package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/tendant/simple-account/pkg/errors"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		render.Status(r, appErr.HTTPStatusCode())
		render.JSON(w, r, errorResponse{Code: string(appErr.Code), Message: appErr.Message})
		return
	}
	internalError(w, r)
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, errorResponse{Code: string(apperrors.ErrCodeInvalidInput), Message: message})
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, errorResponse{Code: string(apperrors.ErrCodeUnauthorized), Message: "authentication required"})
}

func internalError(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, errorResponse{Code: string(apperrors.ErrCodeInternal), Message: "internal server error"})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return "invalid field: " + first.Field()
	}
	return "validation failed"
}
