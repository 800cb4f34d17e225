package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/cts/core"
)

func TestPrimaryRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  string
	}{
		{name: "none"},
		{name: "unknown", roles: []string{"lol"}},
		{name: "student", roles: []string{RoleStudent}, want: RoleStudent},
		{name: "sme & coordinator", roles: []string{RoleSME, RoleCoordinator}, want: RoleCoordinator},
		{name: "all", roles: AllRoles, want: RoleAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrimaryRole(tt.roles))
		})
	}
}

func TestRoleNames(t *testing.T) {
	assert.Equal(t, "Program Coordinator", RoleName(RoleCoordinator))
	assert.Equal(t, "Subject Method Expert", RoleName(RoleSME))
	assert.Equal(t, "Head Of Section", RoleName(RoleHOS))
	assert.Equal(t, "", RoleName("lol"))
	assert.Equal(t, RoleAdmin, RoleValue("Administrator"))
	assert.Equal(t, RoleStudent, RoleValue("Student"))
}

func TestUser_Roles(t *testing.T) {
	usr := User{}
	usr.AddRole(RoleSME)
	usr.AddRole(RoleSME)
	assert.Equal(t, []string{RoleSME}, usr.Roles)
	assert.True(t, usr.IsSME())
	assert.False(t, usr.IsCoordinator())
	assert.False(t, usr.IsHOS())

	usr.AddRole(RoleCoordinator)
	assert.Equal(t, RoleCoordinator, usr.PrimaryRole())

	usr.RemoveRole(RoleCoordinator)
	assert.Equal(t, []string{RoleSME}, usr.Roles)
	assert.True(t, usr.Active())

	usr.SetActive(false)
	assert.False(t, usr.Active())
}

func TestPasswordPolicy(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	LoadCommonPasswords(nopLogger{})

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{name: "too short", pwd: "Ab1!", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 123!x", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", wantTag: pwdNotAllNumTag},
		{name: "not complex", pwd: "abcdefgh12", wantTag: pwdComplexityTag},
		{name: "similar to name", pwd: "Kalombo#1", wantTag: pwdAttrSimTag},
		{name: "common", pwd: "Welcome123!", wantTag: pwdNoCommonTag},
		{name: "valid", pwd: "Xk9#mLq2vT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			su := Signup{
				Name:              "Kalombo",
				Email:             "k@test.cd",
				Password:          tt.pwd,
				Phone:             "0812345678",
				ProgramID:         1,
				CampusID:          1,
				OldCampusName:     "Old Campus",
				PrevProgrammeName: "Diploma",
			}
			err := validate.Struct(su)
			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}
			vErrs, ok := err.(validator.ValidationErrors)
			if assert.True(t, ok, "want validator.ValidationErrors, got %v", err) {
				assert.Equal(t, "password", vErrs[0].Field())
				assert.Equal(t, tt.wantTag, vErrs[0].Tag())
			}
		})
	}
}

func TestAllRolesValidation(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	uu := UpdateUser{Roles: []string{RoleSME, "lol"}}
	err := validate.Struct(uu)
	if assert.Error(t, err) {
		vErrs := err.(validator.ValidationErrors)
		assert.Equal(t, "roles", vErrs[0].Field())
		assert.Equal(t, "invalid roles", vErrs[0].Translate(translator))
	}

	uu.Roles = []string{RoleSME, RoleCoordinator}
	assert.NoError(t, validate.Struct(uu))
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
