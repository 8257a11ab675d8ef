// Package apperr defines the domain error types returned by the services and
// their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// ConflictError means an ACTIVE write would leave two active surveys on one
// service point.
type ConflictError struct {
	ServicePointID   string
	ServicePointName string
}

func (e *ConflictError) Error() string {
	name := e.ServicePointName
	if name == "" {
		name = e.ServicePointID
	}
	return fmt.Sprintf("service point %q already has an active survey", name)
}

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return "forbidden: " + e.Reason
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// HTTPStatus maps an error returned by a service onto a response status.
func HTTPStatus(err error) int {
	var (
		ce *ConflictError
		ve *ValidationError
		nf *NotFoundError
		fe *ForbiddenError
	)
	switch {
	case errors.As(err, &ce):
		return http.StatusConflict
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &fe):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON payload returned for a domain error. Internal errors get a
// generic message so driver details never reach the client.
func Body(err error) map[string]interface{} {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return map[string]interface{}{"error": "validation failed", "fields": ve.Fields}
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return map[string]interface{}{
			"error":              ce.Error(),
			"service_point_id":   ce.ServicePointID,
			"service_point_name": ce.ServicePointName,
		}
	}
	if HTTPStatus(err) == http.StatusInternalServerError {
		return map[string]interface{}{"error": "internal server error"}
	}
	return map[string]interface{}{"error": err.Error()}
}

// HTTPError converts a service error into the echo error returned by handlers.
func HTTPError(err error) *echo.HTTPError {
	he := echo.NewHTTPError(HTTPStatus(err), Body(err))
	return he.SetInternal(err)
}
