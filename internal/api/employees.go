package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wolfeidau/payroll/internal/roster"
)

func (h *handlers) listEmployees(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		JSONError(c, http.StatusBadRequest, fmt.Errorf("invalid paging parameters: %w", err))
		return
	}
	if err := q.Validate(); err != nil {
		JSONError(c, http.StatusBadRequest, err)
		return
	}

	page, err := h.roster.List(c.Request.Context(), q.Page, q.Size)
	if err != nil {
		writeRosterError(c, err)
		return
	}

	c.JSON(http.StatusOK, toEmployeeListResponse(page))
}

func (h *handlers) getEmployee(c *gin.Context) {
	id, ok := employeeID(c)
	if !ok {
		return
	}

	e, err := h.roster.Get(c.Request.Context(), id)
	if err != nil {
		writeRosterError(c, err)
		return
	}

	c.Header("ETag", etag(e.Revision))
	c.JSON(http.StatusOK, toEmployeeResponse(e))
}

func (h *handlers) createEmployee(c *gin.Context) {
	req, ok := bindEmployee(c)
	if !ok {
		return
	}

	e, err := h.roster.Create(c.Request.Context(), req.fields(), principalName(c))
	if err != nil {
		writeRosterError(c, err)
		return
	}

	c.Header("Location", roster.Location(e.EmployeeID))
	c.Header("ETag", etag(e.Revision))
	c.JSON(http.StatusCreated, toEmployeeResponse(e))
}

func (h *handlers) updateEmployee(c *gin.Context) {
	id, ok := employeeID(c)
	if !ok {
		return
	}

	var opts []roster.UpdateOption
	if ifMatch := c.GetHeader("If-Match"); ifMatch != "" {
		rev, err := parseETag(ifMatch)
		if err != nil {
			JSONError(c, http.StatusBadRequest, err)
			return
		}
		opts = append(opts, roster.WithExpectedRevision(rev))
	}

	req, ok := bindEmployee(c)
	if !ok {
		return
	}

	e, err := h.roster.Update(c.Request.Context(), id, req.fields(), principalName(c), opts...)
	if err != nil {
		writeRosterError(c, err)
		return
	}

	c.Header("ETag", etag(e.Revision))
	c.JSON(http.StatusOK, toEmployeeResponse(e))
}

func (h *handlers) deleteEmployee(c *gin.Context) {
	id, ok := employeeID(c)
	if !ok {
		return
	}

	if err := h.roster.Delete(c.Request.Context(), id, principalName(c)); err != nil {
		writeRosterError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func bindEmployee(c *gin.Context) (EmployeeRequest, bool) {
	var req EmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("invalid request body"))
		return req, false
	}
	if err := req.Validate(); err != nil {
		JSONError(c, http.StatusBadRequest, err)
		return req, false
	}
	return req, true
}

func employeeID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		JSONError(c, http.StatusNotFound, roster.ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func etag(revision int64) string {
	return `"` + strconv.FormatInt(revision, 10) + `"`
}

// parseETag accepts strong and weak forms of a revision tag.
func parseETag(value string) (int64, error) {
	tag := strings.TrimPrefix(strings.TrimSpace(value), "W/")
	rev, err := strconv.ParseInt(strings.Trim(tag, `"`), 10, 64)
	if err != nil || rev < 0 {
		return 0, fmt.Errorf("invalid If-Match value %q", value)
	}
	return rev, nil
}
