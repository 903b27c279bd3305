package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core/user"
)

func TestCan(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		cap   Capability
		want  bool
	}{
		{name: "no roles", cap: CourseRead, want: false},
		{name: "unknown role", roles: []string{"janitor:"}, cap: CourseRead, want: false},
		{name: "trainee takes exams", roles: []string{user.RoleTrainee}, cap: ExamTake, want: true},
		{name: "trainee cannot write exams", roles: []string{user.RoleTrainee}, cap: ExamWrite, want: false},
		{name: "trainee cannot mark attendance", roles: []string{user.RoleTrainee}, cap: AttendanceWrite, want: false},
		{name: "instructor cannot take exams", roles: []string{user.RoleInstructor}, cap: ExamTake, want: false},
		{name: "instructor marks attendance", roles: []string{user.RoleInstructor}, cap: AttendanceWrite, want: true},
		{name: "instructor cannot issue certificates", roles: []string{user.RoleInstructor}, cap: CertificateIssue, want: false},
		{name: "admin sub-role inherits family", roles: []string{user.RoleAdminOwner}, cap: UserManage, want: true},
		{name: "admin cannot take exams", roles: []string{user.RoleAdmin}, cap: ExamTake, want: false},
		{name: "roles are unioned", roles: []string{user.RoleInstructor, user.RoleTrainee}, cap: ExamTake, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.roles, tt.cap))
		})
	}
}

func TestCapabilities(t *testing.T) {
	caps := Capabilities([]string{user.RoleTrainee, user.RoleTrainee})
	assert.Equal(t, []Capability{
		CertificateRead, CourseRead, ExamRead, ExamTake, FileRead, FileUpload, NotificationRead, SessionRead,
	}, caps)

	assert.Empty(t, Capabilities(nil))
}
