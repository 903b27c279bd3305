package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/testutil"
)

func TestNewUser_Validate(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	testutil.CreateUser(t, env.UserRepo, "Taken", "taken", "taken@police.test", "", nil, true)

	valid := func() user.NewUser {
		return user.NewUser{
			Name:            "Jane Officer",
			Username:        "jofficer",
			Email:           "jane@police.test",
			Password:        "Gr3at-Badge!",
			PasswordConfirm: "Gr3at-Badge!",
			Roles:           []string{user.RoleTrainee},
		}
	}

	tests := []struct {
		name      string
		modify    func(nu *user.NewUser)
		wantField string
	}{
		{name: "valid"},
		{name: "no username nor email", modify: func(nu *user.NewUser) { nu.Username, nu.Email = "", "" }, wantField: "username"},
		{name: "short username", modify: func(nu *user.NewUser) { nu.Username = "jo" }, wantField: "username"},
		{name: "bad email", modify: func(nu *user.NewUser) { nu.Email = "jane@" }, wantField: "email"},
		{name: "unknown role", modify: func(nu *user.NewUser) { nu.Roles = []string{"sheriff:"} }, wantField: "roles"},
		{name: "confirm mismatch", modify: func(nu *user.NewUser) { nu.PasswordConfirm = "nope" }, wantField: "password_confirm"},
		{name: "short password", modify: func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "Ab1!", "Ab1!" }, wantField: "password"},
		{name: "numeric password", modify: func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "1234567890", "1234567890" }, wantField: "password"},
		{name: "simple password", modify: func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "abcdefghij", "abcdefghij" }, wantField: "password"},
		{name: "spaced password", modify: func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "Gr3at Badge!", "Gr3at Badge!" }, wantField: "password"},
		{name: "username taken", modify: func(nu *user.NewUser) { nu.Username = "TAKEN" }, wantField: "username"},
		{name: "email taken", modify: func(nu *user.NewUser) { nu.Email = "taken@police.test" }, wantField: "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := valid()
			if tt.modify != nil {
				tt.modify(&nu)
			}
			err := nu.Validate(ctx, env.Validate, env.Users)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)

			var fields []core.FieldError
			switch e := err.(type) {
			case validator.ValidationErrors:
				fields = core.TranslateValidationErrors(e, env.Translator)
			case *core.ValidationError:
				fields = e.Fields
			default:
				t.Fatalf("unexpected error type %T: %v", err, err)
			}
			var got []string
			for _, f := range fields {
				got = append(got, f.Field)
			}
			assert.Contains(t, got, tt.wantField)
		})
	}
}

func TestService_CRUD(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)

	usr, err := env.Users.Create(ctx, user.NewUser{
		Name:     "Jane Officer",
		Username: "jofficer",
		Email:    "jane@police.test",
		Password: "Gr3at-Badge!",
		Roles:    []string{user.RoleInstructor},
	})
	require.NoError(t, err)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.IsInstructor())
	assert.NoError(t, usr.CheckPassword("Gr3at-Badge!"))

	got, err := env.Users.GetByUsernameOrEmail(ctx, " JANE@police.test ")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	inactive := false
	uu := user.UpdateUser{IsActive: &inactive, Roles: []string{user.RoleAdmin}}
	require.NoError(t, uu.Validate(ctx, usr, env.Validate, env.Users))
	updated, err := env.Users.Update(ctx, usr, uu)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.True(t, updated.IsAdmin())
	assert.Equal(t, "jofficer", updated.Username)

	require.NoError(t, env.Users.Delete(ctx, usr.ID))
	_, err = env.Users.GetByID(ctx, usr.ID)
	assert.Equal(t, user.ErrNotFound, err)
}

func TestMaxRolePriority(t *testing.T) {
	assert.Equal(t, 30, user.MaxRolePriority([]string{user.RoleTrainee, user.RoleAdminOwner}))
	assert.Equal(t, 11, user.MaxRolePriority([]string{user.RoleInstructor}))
	assert.Zero(t, user.MaxRolePriority(nil))
}
