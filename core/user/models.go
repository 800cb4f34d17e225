package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/cts/core"
)

// Roles
const (
	RoleStudent     = "student"
	RoleCoordinator = "coordinator"
	RoleSME         = "sme"
	RoleHOS         = "hos"
	RoleAdmin       = "admin"
)

var (
	AllRoles   = []string{RoleAdmin, RoleHOS, RoleCoordinator, RoleSME, RoleStudent}
	StaffRoles = []string{RoleCoordinator, RoleSME, RoleHOS}

	rolePriorities = map[string]int{
		RoleAdmin:       50,
		RoleHOS:         40,
		RoleCoordinator: 30,
		RoleSME:         20,
		RoleStudent:     10,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Subject Method Expert", Value: RoleSME},
		{Name: "Program Coordinator", Value: RoleCoordinator},
		{Name: "Head Of Section", Value: RoleHOS},
		{Name: "Administrator", Value: RoleAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

// PrimaryRole returns the role with the highest priority, "" if there is none.
func PrimaryRole(roles []string) string {
	var primary string
	for _, role := range roles {
		if RolePriority(role) > RolePriority(primary) {
			primary = role
		}
	}
	return primary
}

// RoleName returns the display name of a role value ("coordinator" -> "Program Coordinator").
func RoleName(value string) string {
	for _, r := range Roles {
		if r.Value == value {
			return r.Name
		}
	}
	return ""
}

// RoleValue returns the value of a role display name ("Program Coordinator" -> "coordinator").
func RoleValue(name string) string {
	for _, r := range Roles {
		if r.Name == name {
			return r.Value
		}
	}
	return ""
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	IsActive     *bool     `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AddRole adds `role` once.
func (u *User) AddRole(role string) {
	if !u.HasRole(role) {
		u.Roles = append(u.Roles, role)
	}
}

func (u *User) RemoveRole(role string) {
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if r != role {
			roles = append(roles, r)
		}
	}
	u.Roles = roles
}

func (u *User) PrimaryRole() string { return PrimaryRole(u.Roles) }

func (u *User) IsAdmin() bool       { return u.HasRole(RoleAdmin) }
func (u *User) IsHOS() bool         { return u.HasRole(RoleHOS) }
func (u *User) IsCoordinator() bool { return u.HasRole(RoleCoordinator) }
func (u *User) IsSME() bool         { return u.HasRole(RoleSME) }
func (u *User) IsStudent() bool     { return u.HasRole(RoleStudent) }

// Student is the profile attached to a student account.
type Student struct {
	UserID            string `json:"user_id"`
	ProgramID         int    `json:"program_id"`
	CampusID          int    `json:"campus_id"`
	OldCampusName     string `json:"old_campus_name"`
	PrevProgrammeName string `json:"prev_programme_name"`
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Email           string   `json:"email" validate:"required,email"`
	Phone           string   `json:"phone"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Email)
}

// Signup contains information needed to register a student.
type Signup struct {
	Name              string `json:"name" validate:"required"`
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required"`
	Phone             string `json:"phone" validate:"required"`
	ProgramID         int    `json:"program_id" validate:"required"`
	CampusID          int    `json:"campus_id" validate:"required"`
	OldCampusName     string `json:"old_campus_name" validate:"required"`
	PrevProgrammeName string `json:"prev_programme_name" validate:"required"`
}

func (su *Signup) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	su.Name = core.CleanString(su.Name)
	su.Email = core.CleanString(su.Email, true /* lower */)
	su.Phone = core.CleanString(su.Phone)
	su.OldCampusName = core.CleanString(su.OldCampusName)
	su.PrevProgrammeName = core.CleanString(su.PrevProgrammeName)

	if err := validate.Struct(su); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, su.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Phone           string   `json:"phone"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if phone := core.CleanString(uu.Phone); phone != "" {
		uu.Phone = phone
	} else {
		uu.Phone = origUsr.Phone
	}

	if uu.Roles == nil {
		uu.Roles = origUsr.Roles
	}
	if uu.IsActive == nil {
		uu.IsActive = origUsr.IsActive
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects a single User, by ID or by Email.
type GetFilter struct {
	ID    string
	Email string
}
