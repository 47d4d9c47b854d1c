package domain

import (
	"net/url"
	"strconv"
)

// Suite modes accepted by add_project and update_project.
const (
	SuiteModeSingle          = 1
	SuiteModeSingleBaselines = 2
	SuiteModeMultiple        = 3
)

// GetProjectsRequest holds the optional filters of get_projects.
type GetProjectsRequest struct {
	IsCompleted *int `json:"is_completed,omitempty"`
	Limit       *int `json:"limit,omitempty"`
	Offset      *int `json:"offset,omitempty"`
}

// Query encodes the filters that were provided as TestRail query parameters.
func (r GetProjectsRequest) Query() url.Values {
	q := url.Values{}
	if r.IsCompleted != nil {
		q.Set("is_completed", strconv.Itoa(*r.IsCompleted))
	}
	if r.Limit != nil {
		q.Set("limit", strconv.Itoa(*r.Limit))
	}
	if r.Offset != nil {
		q.Set("offset", strconv.Itoa(*r.Offset))
	}
	return q
}

// ProjectIDRequest addresses a single project.
type ProjectIDRequest struct {
	ID int `json:"id"`
}

// AddProjectRequest is the body of add_project.
type AddProjectRequest struct {
	Name             string  `json:"name"`
	ShowAnnouncement *bool   `json:"show_announcement,omitempty"`
	Announcement     *string `json:"announcement,omitempty"`
	SuiteMode        *int    `json:"suite_mode,omitempty"`
}

// UpdateProjectRequest is the body of update_project. The id also addresses the path.
type UpdateProjectRequest struct {
	ID               int     `json:"id"`
	Name             string  `json:"name"`
	ShowAnnouncement *bool   `json:"show_announcement,omitempty"`
	Announcement     *string `json:"announcement,omitempty"`
	SuiteMode        *int    `json:"suite_mode,omitempty"`
}

// EchoRequest is the argument of the demo echo tool.
type EchoRequest struct {
	Message string `json:"message"`
}
