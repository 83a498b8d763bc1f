package api

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/samber/lo"
	"github.com/wolfeidau/payroll/internal/models"
	"github.com/wolfeidau/payroll/internal/notify"
	"github.com/wolfeidau/payroll/internal/roster"
	"github.com/wolfeidau/payroll/internal/util"
)

// EmployeeRequest is the body of create and update calls.
type EmployeeRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Description string `json:"description"`

	// Manager is accepted and ignored; ownership follows the caller.
	Manager string `json:"manager,omitempty"`
}

func (r EmployeeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required.Error("first name is required"), validation.Length(1, 100)),
		validation.Field(&r.LastName, validation.Required.Error("last name is required"), validation.Length(1, 100)),
		validation.Field(&r.Description, validation.Length(0, 1000)),
	)
}

func (r EmployeeRequest) fields() roster.Fields {
	return roster.Fields{
		FirstName:   strings.TrimSpace(r.FirstName),
		LastName:    strings.TrimSpace(r.LastName),
		Description: r.Description,
		Owner:       r.Manager,
	}
}

// ListQuery holds the paging parameters of the list call.
type ListQuery struct {
	Page int `form:"page"`
	Size int `form:"size"`
}

func (q ListQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Page, validation.Min(0)),
		validation.Field(&q.Size, validation.Min(0), validation.Max(util.MaxPageSize)),
	)
}

// ManagerResponse is the public view of an owner.
type ManagerResponse struct {
	Name string `json:"name"`
}

// EmployeeResponse is the public view of an employee.
type EmployeeResponse struct {
	ID          string          `json:"id"`
	FirstName   string          `json:"firstName"`
	LastName    string          `json:"lastName"`
	Description string          `json:"description"`
	Manager     ManagerResponse `json:"manager"`
	Revision    int64           `json:"revision"`
	Location    string          `json:"location"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// PageMetadata describes a page of a list response.
type PageMetadata struct {
	Size          int `json:"size"`
	Number        int `json:"number"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}

// EmployeeListResponse is one page of employees.
type EmployeeListResponse struct {
	Employees []EmployeeResponse `json:"employees"`
	Page      PageMetadata       `json:"page"`
}

// TokenResponse is returned by the token endpoint.
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ErrorResponse wraps every error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func toEmployeeResponse(e *models.Employee) EmployeeResponse {
	return EmployeeResponse{
		ID:          e.EmployeeID.String(),
		FirstName:   e.FirstName,
		LastName:    e.LastName,
		Description: e.Description,
		Manager:     ManagerResponse{Name: e.OwnerName()},
		Revision:    e.Revision,
		Location:    roster.Location(e.EmployeeID),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toEmployeeListResponse(page *roster.Page) EmployeeListResponse {
	return EmployeeListResponse{
		Employees: lo.Map(page.Employees, func(e *models.Employee, _ int) EmployeeResponse {
			return toEmployeeResponse(e)
		}),
		Page: PageMetadata{
			Size:          page.Paging.Size,
			Number:        page.Paging.Page,
			TotalElements: page.TotalElements,
			TotalPages:    page.TotalPages,
		},
	}
}

// eventTopics expands short topic names such as "newEmployee" and removes duplicates.
// It returns false when a topic is unknown.
func eventTopics(requested []string) ([]string, bool) {
	topics := lo.Uniq(lo.Map(requested, func(t string, _ int) string {
		if strings.HasPrefix(t, notify.TopicPrefix+"/") {
			return t
		}
		return notify.TopicPrefix + "/" + t
	}))

	if _, invalid := lo.Find(topics, func(t string) bool { return !notify.ValidTopic(t) }); invalid {
		return nil, false
	}

	return topics, true
}
