package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

// Enrollment statuses
const (
	EnrollmentAssigned   = "assigned"
	EnrollmentInProgress = "in_progress"
	EnrollmentCompleted  = "completed"
)

type Course struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	Published   bool       `json:"published"`
	ArchivedAt  *time.Time `json:"archived_at"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (c Course) IsArchived() bool { return c.ArchivedAt != nil }

type Module struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

type Enrollment struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	CourseID    string     `json:"course_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

type NewCourse struct {
	Code        string   `json:"code" validate:"required,max=32,alphanum_"`
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description"`
	Tags        []string `json:"tags" validate:"omitempty,dive,max=50"`
	Published   bool     `json:"published"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Code = core.CleanString(nc.Code)
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Tags = core.CleanStrings(nc.Tags, true /* lower */)
	return validate.Struct(nc)
}

type UpdateCourse struct {
	Title       string   `json:"title" validate:"omitempty,max=200"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags" validate:"omitempty,dive,max=50"`
	Published   *bool    `json:"published"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Title = core.CleanString(uc.Title)
	if uc.Tags != nil {
		uc.Tags = core.CleanStrings(uc.Tags, true /* lower */)
	}
	return validate.Struct(uc)
}

type NewModule struct {
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content"`
	Position int    `json:"position" validate:"min=0"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	return validate.Struct(nm)
}

type NewEnrollment struct {
	UserID string `json:"user_id" validate:"required"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.UserID = core.CleanString(ne.UserID)
	return validate.Struct(ne)
}

type UpdateEnrollment struct {
	Status string `json:"status" validate:"required,oneof=assigned in_progress completed"`
}

func (ue *UpdateEnrollment) Validate(validate *validator.Validate) error {
	ue.Status = core.CleanString(ue.Status, true /* lower */)
	return validate.Struct(ue)
}

type QueryFilter struct {
	Search    string `query:"search"`
	Tag       string `query:"tag"`
	Archived  bool   `query:"archived"`
	Published *bool  `query:"published"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Tag = core.CleanString(qf.Tag, true /* lower */)
}

type EnrollmentFilter struct {
	CourseID string `query:"course_id"`
	UserID   string `query:"user_id"`
	Status   string `query:"status"`
}
