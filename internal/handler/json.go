package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

func (h *Handler) logInternalServerError(r *http.Request, err error) {
	slog.Error("服务器内部错误", "method", r.Method, "path", r.URL.Path, "error", err)
}

func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var syntaxError *json.SyntaxError
		var typeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("request body contains malformed JSON")
		case errors.As(err, &typeError):
			if typeError.Field != "" {
				return fmt.Errorf("%s has an invalid type", typeError.Field)
			}
			return errors.New("request body contains an invalid value")
		case errors.Is(err, io.EOF):
			return errors.New("request body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("unknown field %s", field)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("request body must not be larger than %d bytes", maxBytesError.Limit)
		default:
			return err
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must only contain a single JSON value")
	}

	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logInternalServerError(r, err)
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) messageResponse(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, r, status, messageResponse{Message: msg})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		h.messageResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	h.messageResponse(w, r, http.StatusBadRequest, validationErrors[0].Translate(h.translator))
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	h.messageResponse(w, r, http.StatusUnauthorized, msg)
}

func (h *Handler) forbidden(w http.ResponseWriter, r *http.Request, msg string) {
	h.messageResponse(w, r, http.StatusForbidden, msg)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request, msg string) {
	h.messageResponse(w, r, http.StatusNotFound, msg)
}

func (h *Handler) editConflict(w http.ResponseWriter, r *http.Request) {
	h.messageResponse(w, r, http.StatusConflict, "Edit conflict, please retry")
}

func (h *Handler) tooManyRequests(w http.ResponseWriter, r *http.Request, msg string) {
	h.messageResponse(w, r, http.StatusTooManyRequests, msg)
}

func (h *Handler) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logInternalServerError(r, err)
	h.messageResponse(w, r, http.StatusInternalServerError, "Internal server error")
}
