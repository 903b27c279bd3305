// Package rbac holds the static permission table: which capabilities each role family grants.
package rbac

import (
	"sort"
	"strings"

	"github.com/trezcool/academia/core/user"
)

type Capability string

const (
	CourseRead       Capability = "course:read"
	CourseWrite      Capability = "course:write"
	EnrollmentWrite  Capability = "enrollment:write"
	ExamRead         Capability = "exam:read"
	ExamWrite        Capability = "exam:write"
	ExamTake         Capability = "exam:take"
	SessionRead      Capability = "session:read"
	SessionWrite     Capability = "session:write"
	AttendanceWrite  Capability = "attendance:write"
	CertificateRead  Capability = "certificate:read"
	CertificateIssue Capability = "certificate:issue"
	FileUpload       Capability = "file:upload"
	FileRead         Capability = "file:read"
	FileDelete       Capability = "file:delete"
	NotificationRead Capability = "notification:read"
	NotificationSend Capability = "notification:send"
	ReportRead       Capability = "report:read"
	UserManage       Capability = "user:manage"
	AuditRead        Capability = "audit:read"
)

type capabilitySet map[Capability]struct{}

func setOf(caps ...Capability) capabilitySet {
	set := make(capabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// table is keyed by role family (the role prefix up to and including ':').
var table = map[string]capabilitySet{
	user.RoleAdmin: setOf(
		CourseRead, CourseWrite, EnrollmentWrite,
		ExamRead, ExamWrite,
		SessionRead, SessionWrite, AttendanceWrite,
		CertificateRead, CertificateIssue,
		FileUpload, FileRead, FileDelete,
		NotificationRead, NotificationSend,
		ReportRead, UserManage, AuditRead,
	),
	user.RoleInstructor: setOf(
		CourseRead, CourseWrite, EnrollmentWrite,
		ExamRead, ExamWrite,
		SessionRead, SessionWrite, AttendanceWrite,
		CertificateRead,
		FileUpload, FileRead,
		NotificationRead, NotificationSend,
		ReportRead,
	),
	user.RoleTrainee: setOf(
		CourseRead,
		ExamRead, ExamTake,
		SessionRead,
		CertificateRead,
		FileUpload, FileRead,
		NotificationRead,
	),
}

func family(role string) string {
	if i := strings.Index(role, ":"); i >= 0 {
		return role[:i+1]
	}
	return role
}

// Can reports whether any of roles grants capability.
func Can(roles []string, capability Capability) bool {
	for _, role := range roles {
		if caps, ok := table[family(role)]; ok {
			if _, granted := caps[capability]; granted {
				return true
			}
		}
	}
	return false
}

// Capabilities lists the capabilities granted by roles, sorted.
func Capabilities(roles []string) []Capability {
	merged := make(capabilitySet)
	for _, role := range roles {
		for c := range table[family(role)] {
			merged[c] = struct{}{}
		}
	}
	caps := make([]Capability, 0, len(merged))
	for c := range merged {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}
