// Package handlers provides HTTP request handlers.
package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"produceledger/internal/core/apperror"
	"produceledger/internal/core/id"
	"produceledger/internal/domain/documents"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Bind picks the binding from the content type (JSON or form).
func (h *BaseHandler) Bind(c *gin.Context, obj any) bool {
	if err := c.ShouldBind(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers the error on the gin context and aborts.
// The JSON body is written by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParamID parses a UUID path parameter.
func (h *BaseHandler) ParamID(c *gin.Context, name string) (id.ID, bool) {
	v, err := id.Parse(c.Param(name))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+name+" format").WithDetail("value", c.Param(name)))
		return id.ID{}, false
	}
	return v, true
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Attachment reads the optional "attachment" file of a multipart request.
func (h *BaseHandler) Attachment(c *gin.Context) (*documents.Attachment, bool) {
	fh, err := c.FormFile("attachment")
	if err != nil {
		// no multipart body or no file part
		return nil, true
	}
	if fh.Size > documents.MaxAttachmentSize {
		h.Error(c, apperror.NewValidation(
			fmt.Sprintf("attachment must be at most %d MB", documents.MaxAttachmentSize>>20)).
			WithDetail("field", "attachment"))
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		h.Error(c, apperror.NewValidation("unreadable attachment").WithCause(err))
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, documents.MaxAttachmentSize+1))
	if err != nil {
		h.Error(c, apperror.NewValidation("unreadable attachment").WithCause(err))
		return nil, false
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &documents.Attachment{Name: fh.Filename, ContentType: contentType, Data: data}, true
}

// File writes a binary download.
func (h *BaseHandler) File(c *gin.Context, name, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType, data)
}
