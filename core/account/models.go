package account

import (
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/darasa/core"
)

// Roles. An account holds exactly one role, fixed at creation.
const (
	RoleAdmin   = "ADMIN"
	RoleTeacher = "TEACHER"
	RoleStudent = "STUDENT"
	RoleUser    = "USER"
)

// Lifecycle statuses.
const (
	StatusActive  = "ACTIVE"
	StatusBlocked = "BLOCKED"
	StatusDeleted = "DELETED" // terminal
)

// Approval statuses. Only relevant to non-admin roles.
const (
	ApprovalPending  = "PENDING"
	ApprovalApproved = "APPROVED"
	ApprovalRejected = "REJECTED"
)

var AllRoles = []string{RoleAdmin, RoleTeacher, RoleStudent, RoleUser}

type Account struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	CountryCode string    `json:"country_code"`
	DOB         time.Time `json:"dob"`
	Address     string    `json:"address"`
	Gender      string    `json:"gender"`
	ProfilePic  string    `json:"profile_pic"`

	Role     string `json:"role"`
	Status   string `json:"status"`
	Approval string `json:"approval"`
	Verified bool   `json:"verified"`

	PasswordHash []byte    `json:"-"`
	OTP          string    `json:"-"`
	OTPExpiry    time.Time `json:"-"`

	// mirrored many-to-many assignment sets; every id in AssignedStudents
	// references an account whose AssignedTeachers contains this account's id
	// (and vice versa)
	AssignedTeachers []string `json:"assigned_teachers,omitempty"`
	AssignedStudents []string `json:"assigned_students,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
	LastLogin time.Time `json:"last_login"` // UTC
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

func (a *Account) IsAdmin() bool   { return a.Role == RoleAdmin }
func (a *Account) IsTeacher() bool { return a.Role == RoleTeacher }
func (a *Account) IsStudent() bool { return a.Role == RoleStudent }

func (a *Account) IsDeleted() bool { return a.Status == StatusDeleted }
func (a *Account) IsBlocked() bool { return a.Status == StatusBlocked }

// IsEligible reports whether the account may take part in a teacher/student
// assignment: approved and in good standing.
func (a *Account) IsEligible() bool {
	return a.Approval == ApprovalApproved && a.Status == StatusActive
}

func (a *Account) HasTeacher(id string) bool { return contains(a.AssignedTeachers, id) }
func (a *Account) HasStudent(id string) bool { return contains(a.AssignedStudents, id) }

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// NewAccount contains information needed to register a new Account.
// The role is not client-provided; it is fixed by the sign-up endpoint.
type NewAccount struct {
	Name            string    `json:"name" form:"name" validate:"required"`
	Username        string    `json:"username" form:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string    `json:"email" form:"email" validate:"required,email"`
	PhoneNumber     string    `json:"phone_number" form:"phone_number" validate:"required"`
	CountryCode     string    `json:"country_code" form:"country_code" validate:"required,max=3"`
	DOB             time.Time `json:"dob" form:"dob"`
	Address         string    `json:"address" form:"address"`
	Gender          string    `json:"gender" form:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER"`
	Password        string    `json:"password" form:"password" validate:"required"`
	PasswordConfirm string    `json:"password_confirm" form:"password_confirm" validate:"required,eqfield=Password"`
}

func (na *NewAccount) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	na.Username = core.CleanString(na.Username, true /* lower */)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.PhoneNumber = core.CleanString(na.PhoneNumber)
	return validate.Struct(na)
}

// UpdateAccount defines what information the owner may modify on an existing
// Account. Empty fields keep their current value.
type UpdateAccount struct {
	Name        string    `json:"name" form:"name"`
	DOB         time.Time `json:"dob" form:"dob"`
	Address     string    `json:"address" form:"address"`
	PhoneNumber string    `json:"phone_number" form:"phone_number"`
	Gender      string    `json:"gender" form:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER"`
	CountryCode string    `json:"country_code" form:"country_code" validate:"omitempty,max=3"`
	ProfilePic  string    `json:"-" form:"-"`
}

func (ua *UpdateAccount) Validate(validate *validator.Validate) error {
	ua.Name = core.CleanString(ua.Name)
	ua.PhoneNumber = core.CleanString(ua.PhoneNumber)
	return validate.Struct(ua)
}

type ChangePassword struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (cp ChangePassword) Validate(validate *validator.Validate) error {
	return validate.Struct(cp)
}

// ResetAccountPassword resets a forgotten password; gated by the one-time
// code mailed by the forgot-password flow.
type ResetAccountPassword struct {
	AccountID       string `json:"account_id" validate:"required"`
	OTP             string `json:"otp" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (rp ResetAccountPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

// QueryFilter narrows and paginates admin account listings.
type QueryFilter struct {
	Search string `query:"search"` // case-insensitive match on Name
	Status string `query:"status"` // ALL | ACTIVE | BLOCKED | DELETED
	Role   string `query:"role"`
	Page   int    `query:"page"`
	Limit  int    `query:"limit"`

	Ordering []core.DBOrdering `query:"-"` // set by the handler, not bound
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true)
	qf.Status = map[string]string{
		"active": StatusActive, "blocked": StatusBlocked, "deleted": StatusDeleted,
	}[qf.Status] // anything else means ALL
	qf.Role = strings.ToUpper(core.CleanString(qf.Role))
	if !contains(AllRoles, qf.Role) {
		qf.Role = ""
	}
	if qf.Page < 1 {
		qf.Page = 1
	}
	if qf.Limit < 1 {
		qf.Limit = 10
	}
}

// Page is one page of a filtered account listing, newest first.
type Page struct {
	Docs       []Account `json:"docs"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	Count      int       `json:"count"`
	TotalPages int       `json:"total_pages"`
}

// InitValidators registers the account package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	registerPasswordValidators(validate, translator)
}
