package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

// Statuses
const (
	Present = "present"
	Absent  = "absent"
	Late    = "late"
	Excused = "excused"
)

// Capture methods
const (
	MethodManual    = "manual"
	MethodQR        = "qr"
	MethodBiometric = "biometric"
)

// Session is a scheduled training session of a course.
type Session struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"course_id"`
	Title        string    `json:"title"`
	Location     string    `json:"location"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	InstructorID string    `json:"instructor_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type Attendance struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	Method     string    `json:"method"`
	Notes      string    `json:"notes"`
	CapturedBy string    `json:"captured_by"`
	CapturedAt time.Time `json:"captured_at"`
}

type NewSession struct {
	CourseID     string    `json:"course_id" validate:"required"`
	Title        string    `json:"title" validate:"required,max=200"`
	Location     string    `json:"location" validate:"max=200"`
	StartsAt     time.Time `json:"starts_at" validate:"required"`
	EndsAt       time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	InstructorID string    `json:"instructor_id"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.CourseID = core.CleanString(ns.CourseID)
	ns.Title = core.CleanString(ns.Title)
	ns.Location = core.CleanString(ns.Location)
	ns.InstructorID = core.CleanString(ns.InstructorID)
	return validate.Struct(ns)
}

// Mark is one attendance record to capture.
type Mark struct {
	UserID string `json:"user_id" validate:"required"`
	Status string `json:"status" validate:"required,oneof=present absent late excused"`
	Method string `json:"method" validate:"omitempty,oneof=manual qr biometric"`
	Notes  string `json:"notes" validate:"max=1000"`
}

func (m *Mark) Validate(validate *validator.Validate) error {
	m.UserID = core.CleanString(m.UserID)
	m.Status = core.CleanString(m.Status, true /* lower */)
	m.Method = core.CleanString(m.Method, true /* lower */)
	m.Notes = core.CleanString(m.Notes)
	if m.Method == "" {
		m.Method = MethodManual
	}
	return validate.Struct(m)
}

// MarkResult reports the outcome of one record of a bulk capture.
type MarkResult struct {
	UserID     string      `json:"user_id"`
	Success    bool        `json:"success"`
	Error      string      `json:"error,omitempty"`
	Attendance *Attendance `json:"attendance,omitempty"`
}

type SessionFilter struct {
	CourseID string    `query:"course_id"`
	From     time.Time
	To       time.Time
}
