package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound           = errors.New("account not found")
	ErrEmailExists        = errors.New("an account with this email already exists")
	ErrPhoneExists        = errors.New("an account with this phone number already exists")
	ErrApprovalRequired   = errors.New("account is awaiting admin approval")
	ErrAccountBlocked     = errors.New("account has been blocked by admin")
	ErrInvalidCredentials = errors.New("incorrect credentials")
	ErrOTPExpired         = errors.New("one-time code has expired")
	ErrIncorrectOTP       = errors.New("incorrect one-time code")
	ErrNoPendingApproval  = errors.New("no pending approval request for this account")
	ErrRoleMismatch       = errors.New("assignment requires a teacher and a student")
	ErrNotEligible        = errors.New("both accounts must be approved and active")
)

type (
	// GetFilter narrows single-account lookups. Deleted accounts are excluded
	// unless IncludeDeleted is set.
	GetFilter struct {
		ID             string
		EmailOrPhone   string
		Role           string
		IncludeDeleted bool
	}

	Repository interface {
		// CheckUniqueness returns ErrEmailExists or ErrPhoneExists when another
		// account (not in excluded) already holds one of the identifiers.
		CheckUniqueness(ctx context.Context, email, phone string, excluded ...Account) error
		CreateAccount(ctx context.Context, acct Account) (Account, error)
		GetAccount(ctx context.Context, filter GetFilter) (Account, error)
		// FilterAccounts pages through accounts newest first.
		FilterAccounts(ctx context.Context, filter QueryFilter) (Page, error)
		PendingAccounts(ctx context.Context) ([]Account, error)
		UpdateAccount(ctx context.Context, acct Account) (Account, error)
		// AssignPair/UnassignPair update both mirror sets atomically.
		AssignPair(ctx context.Context, teacherID, studentID string) error
		UnassignPair(ctx context.Context, teacherID, studentID string) error
		// SoftDeleteAccount marks the account DELETED, clears its assignment
		// sets and removes its id from every counterpart's mirror set, all in
		// the same transaction.
		SoftDeleteAccount(ctx context.Context, acct Account) error
	}

	ServiceInterface interface {
		Register(ctx context.Context, na NewAccount, role string) (Account, error)
		Authenticate(ctx context.Context, identifier, password string) (Account, error)
		GetByID(ctx context.Context, id string) (Account, error)
		GetByEmailOrPhone(ctx context.Context, identifier string) (Account, error)
		GetAdmin(ctx context.Context) (Account, error)
		Filter(ctx context.Context, filter *QueryFilter) (Page, error)
		PendingAccounts(ctx context.Context) ([]Account, error)
		UpdateProfile(ctx context.Context, id string, ua UpdateAccount) (Account, error)
		ChangePassword(ctx context.Context, id string, cp ChangePassword) error
		VerifyOTP(ctx context.Context, id, code string) error
		ResendOTP(ctx context.Context, identifier string) (Account, error)
		RequestPasswordReset(ctx context.Context, identifier string) (Account, error)
		ResetPassword(ctx context.Context, rp ResetAccountPassword) error
		Approve(ctx context.Context, id string) (Account, error)
		SetBlocked(ctx context.Context, id string, blocked bool) (Account, bool, error)
		Delete(ctx context.Context, id string) error
		Assign(ctx context.Context, teacherID, studentID string) error
		Unassign(ctx context.Context, teacherID, studentID string) error
		EnsureDefaultAdmin(ctx context.Context) (Account, error)
	}

	service struct {
		repo     Repository
		notifier core.Notifier
		conf     *core.Config
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, notifier core.Notifier, conf *core.Config) *service {
	return &service{
		repo:     repo,
		notifier: notifier,
		conf:     conf,
	}
}

// Register creates a new account with the given role. Non-admin accounts
// enter the lifecycle as (PENDING, ACTIVE) and receive a verification code.
// Duplicate identifiers surface as ErrEmailExists/ErrPhoneExists.
func (svc *service) Register(ctx context.Context, na NewAccount, role string) (Account, error) {
	if err := svc.repo.CheckUniqueness(ctx, na.Email, na.PhoneNumber); err != nil {
		return Account{}, err
	}

	now := NowFunc().UTC()
	acct := Account{
		Name:        na.Name,
		Username:    na.Username,
		Email:       na.Email,
		PhoneNumber: na.PhoneNumber,
		CountryCode: na.CountryCode,
		DOB:         na.DOB,
		Address:     na.Address,
		Gender:      na.Gender,
		Role:        role,
		Status:      StatusActive,
		Approval:    ApprovalPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if role == RoleAdmin {
		acct.Approval = ApprovalApproved
	}
	if err := acct.SetPassword(na.Password); err != nil {
		return Account{}, err
	}
	if _, err := svc.issueOTP(&acct); err != nil {
		return Account{}, err
	}

	acct, err := svc.repo.CreateAccount(ctx, acct)
	if err != nil {
		return Account{}, err
	}
	svc.sendVerificationMail(acct)
	return acct, nil
}

// Authenticate looks an account up by email or phone number and checks its
// credentials and standing, in this order: existence, approval, blocked
// status, password. An unverified account gets a fresh verification code
// (throttled) as a side effect of logging in.
func (svc *service) Authenticate(ctx context.Context, identifier, password string) (Account, error) {
	acct, err := svc.repo.GetAccount(ctx, GetFilter{EmailOrPhone: core.CleanString(identifier, true)})
	if err != nil {
		return Account{}, err
	}
	if !acct.IsAdmin() && acct.Approval != ApprovalApproved {
		return Account{}, ErrApprovalRequired
	}
	if acct.IsBlocked() {
		return Account{}, ErrAccountBlocked
	}
	if err = acct.CheckPassword(password); err != nil {
		return Account{}, ErrInvalidCredentials
	}

	if !acct.Verified {
		if issued, err := svc.maybeIssueOTP(&acct); err != nil {
			return Account{}, err
		} else if issued {
			svc.sendVerificationMail(acct)
		}
	}

	acct.LastLogin = NowFunc().UTC()
	return svc.repo.UpdateAccount(ctx, acct)
}

// GetByID returns the account whatever its lifecycle state; the caller is
// expected to interpret BLOCKED/DELETED (e.g. the access guard).
func (svc *service) GetByID(ctx context.Context, id string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{ID: id, IncludeDeleted: true})
}

func (svc *service) GetByEmailOrPhone(ctx context.Context, identifier string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{EmailOrPhone: core.CleanString(identifier, true)})
}

// GetAdmin looks the admin account up by role, so it keeps working when the
// stored admin's contacts drift from the configured seed.
func (svc *service) GetAdmin(ctx context.Context) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{Role: RoleAdmin})
}

func (svc *service) Filter(ctx context.Context, filter *QueryFilter) (Page, error) {
	filter.Clean()
	return svc.repo.FilterAccounts(ctx, *filter)
}

func (svc *service) PendingAccounts(ctx context.Context) ([]Account, error) {
	return svc.repo.PendingAccounts(ctx)
}

// getActive fetches a non-deleted account by id. DELETED is terminal: every
// mutating operation goes through here so a deleted account reads as gone.
func (svc *service) getActive(ctx context.Context, id string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{ID: id})
}

func (svc *service) UpdateProfile(ctx context.Context, id string, ua UpdateAccount) (Account, error) {
	acct, err := svc.getActive(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if ua.PhoneNumber != "" && ua.PhoneNumber != acct.PhoneNumber {
		if err = svc.repo.CheckUniqueness(ctx, "", ua.PhoneNumber, acct); err != nil {
			return Account{}, err
		}
		acct.PhoneNumber = ua.PhoneNumber
	}
	if ua.Name != "" {
		acct.Name = ua.Name
	}
	if !ua.DOB.IsZero() {
		acct.DOB = ua.DOB
	}
	if ua.Address != "" {
		acct.Address = ua.Address
	}
	if ua.Gender != "" {
		acct.Gender = ua.Gender
	}
	if ua.CountryCode != "" {
		acct.CountryCode = ua.CountryCode
	}
	if ua.ProfilePic != "" {
		acct.ProfilePic = ua.ProfilePic
	}
	acct.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateAccount(ctx, acct)
}

func (svc *service) ChangePassword(ctx context.Context, id string, cp ChangePassword) error {
	acct, err := svc.getActive(ctx, id)
	if err != nil {
		return err
	}
	if err = acct.SetPassword(cp.Password); err != nil {
		return err
	}
	acct.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateAccount(ctx, acct)
	return err
}

// VerifyOTP validates then consumes the account's one-time code, marking the
// account verified. A consumed code never validates again.
func (svc *service) VerifyOTP(ctx context.Context, id, code string) error {
	acct, err := svc.getActive(ctx, id)
	if err != nil {
		return err
	}
	if acct.OTPExpired() {
		return ErrOTPExpired
	}
	if !acct.CheckOTP(code) {
		return ErrIncorrectOTP
	}
	acct.Verified = true
	acct.clearOTP()
	acct.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateAccount(ctx, acct)
	return err
}

// ResendOTP issues a fresh verification code, subject to the resend cooldown:
// while a recently issued code is still within the cooldown window no new
// code (and no new notification) is produced.
func (svc *service) ResendOTP(ctx context.Context, identifier string) (Account, error) {
	return svc.reissueOTP(ctx, identifier, svc.sendVerificationMail)
}

// RequestPasswordReset issues a one-time code for the reset-password flow.
func (svc *service) RequestPasswordReset(ctx context.Context, identifier string) (Account, error) {
	return svc.reissueOTP(ctx, identifier, svc.sendPasswordResetMail)
}

func (svc *service) reissueOTP(ctx context.Context, identifier string, send func(Account)) (Account, error) {
	acct, err := svc.GetByEmailOrPhone(ctx, identifier)
	if err != nil {
		return Account{}, err
	}
	issued, err := svc.maybeIssueOTP(&acct)
	if err != nil {
		return Account{}, err
	}
	if !issued { // throttled; the previous code is still usable
		return acct, nil
	}
	acct.UpdatedAt = NowFunc().UTC()
	if acct, err = svc.repo.UpdateAccount(ctx, acct); err != nil {
		return Account{}, err
	}
	send(acct)
	return acct, nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetAccountPassword) error {
	acct, err := svc.getActive(ctx, rp.AccountID)
	if err != nil {
		return err
	}
	if acct.OTPExpired() {
		return ErrOTPExpired
	}
	if !acct.CheckOTP(rp.OTP) {
		return ErrIncorrectOTP
	}
	if err = acct.SetPassword(rp.Password); err != nil {
		return err
	}
	acct.clearOTP()
	acct.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateAccount(ctx, acct)
	return err
}

// Approve flips a PENDING account to APPROVED and notifies it. Approving an
// account that has no pending request is rejected with ErrNoPendingApproval.
func (svc *service) Approve(ctx context.Context, id string) (Account, error) {
	acct, err := svc.getActive(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if acct.Approval != ApprovalPending {
		return Account{}, ErrNoPendingApproval
	}
	acct.Approval = ApprovalApproved
	acct.UpdatedAt = NowFunc().UTC()
	if acct, err = svc.repo.UpdateAccount(ctx, acct); err != nil {
		return Account{}, err
	}
	svc.sendApprovalMail(acct)
	return acct, nil
}

// SetBlocked toggles the BLOCKED status. Re-applying the current state is an
// informational no-op: the second return value reports whether anything
// changed, and an unchanged account keeps its UpdatedAt.
func (svc *service) SetBlocked(ctx context.Context, id string, blocked bool) (Account, bool, error) {
	acct, err := svc.getActive(ctx, id)
	if err != nil {
		return Account{}, false, err
	}
	target := StatusActive
	if blocked {
		target = StatusBlocked
	}
	if acct.Status == target {
		return acct, false, nil
	}
	acct.Status = target
	acct.UpdatedAt = NowFunc().UTC()
	acct, err = svc.repo.UpdateAccount(ctx, acct)
	return acct, err == nil, err
}

// Delete soft-deletes the account and cleans up the assignment references
// pointing back at it. DELETED is terminal.
func (svc *service) Delete(ctx context.Context, id string) error {
	acct, err := svc.getActive(ctx, id)
	if err != nil {
		return err
	}
	return svc.repo.SoftDeleteAccount(ctx, acct)
}

// Assign links a teacher and a student (set-union semantics; re-assigning is
// a no-op). Both sides must be approved and active.
func (svc *service) Assign(ctx context.Context, teacherID, studentID string) error {
	teacher, student, err := svc.getPair(ctx, teacherID, studentID)
	if err != nil {
		return err
	}
	if !teacher.IsEligible() || !student.IsEligible() {
		return ErrNotEligible
	}
	if teacher.HasStudent(student.ID) && student.HasTeacher(teacher.ID) {
		return nil
	}
	return svc.repo.AssignPair(ctx, teacher.ID, student.ID)
}

func (svc *service) Unassign(ctx context.Context, teacherID, studentID string) error {
	teacher, student, err := svc.getPair(ctx, teacherID, studentID)
	if err != nil {
		return err
	}
	if !teacher.HasStudent(student.ID) && !student.HasTeacher(teacher.ID) {
		return nil
	}
	return svc.repo.UnassignPair(ctx, teacher.ID, student.ID)
}

func (svc *service) getPair(ctx context.Context, teacherID, studentID string) (teacher, student Account, err error) {
	if teacher, err = svc.getActive(ctx, teacherID); err != nil {
		return
	}
	if student, err = svc.getActive(ctx, studentID); err != nil {
		return
	}
	if !teacher.IsTeacher() || !student.IsStudent() {
		err = ErrRoleMismatch
	}
	return
}

// EnsureDefaultAdmin makes sure exactly one ADMIN account exists, creating it
// from the configured seed on first run. Idempotent; called once at start-up.
func (svc *service) EnsureDefaultAdmin(ctx context.Context) (Account, error) {
	acct, err := svc.repo.GetAccount(ctx, GetFilter{Role: RoleAdmin})
	if err == nil {
		return acct, nil
	}
	if err != ErrNotFound {
		return Account{}, err
	}

	now := NowFunc().UTC()
	admin := Account{
		Name:        svc.conf.Admin.Name,
		Email:       core.CleanString(svc.conf.Admin.Email, true),
		PhoneNumber: svc.conf.Admin.PhoneNumber,
		Role:        RoleAdmin,
		Status:      StatusActive,
		Approval:    ApprovalApproved,
		Verified:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = admin.SetPassword(svc.conf.Admin.Password); err != nil {
		return Account{}, err
	}
	return svc.repo.CreateAccount(ctx, admin)
}

// issueOTP unconditionally puts a fresh one-time code on the account.
func (svc *service) issueOTP(acct *Account) (bool, error) {
	code, err := GenerateOTP(svc.conf.OTPLength)
	if err != nil {
		return false, err
	}
	acct.OTP = code
	acct.OTPExpiry = NowFunc().Add(svc.conf.OTPExpirationDelta)
	return true, nil
}

// maybeIssueOTP issues a fresh code unless the current one was issued less
// than OTPResendCooldown ago and has not expired yet. This is what keeps a
// retried login or resend from spamming notifications.
func (svc *service) maybeIssueOTP(acct *Account) (bool, error) {
	if acct.OTP != "" && !acct.OTPExpired() {
		issuedAt := acct.OTPExpiry.Add(-svc.conf.OTPExpirationDelta)
		if NowFunc().Before(issuedAt.Add(svc.conf.OTPResendCooldown)) {
			return false, nil
		}
	}
	return svc.issueOTP(acct)
}

func (svc *service) sendVerificationMail(acct Account) {
	svc.notifier.Notify(&core.EmailMessage{
		To:      []mail.Address{{Name: acct.Name, Address: acct.Email}},
		Subject: "Email Verification",
		BodyStr: fmt.Sprintf(
			"Dear %s,\n\nPlease use the verification code below on %s:\n\n%s\n\n"+
				"It expires in %v. If you didn't request this, you can ignore this email.",
			acct.Name, svc.conf.AppName, acct.OTP, svc.conf.OTPExpirationDelta,
		),
	})
}

func (svc *service) sendPasswordResetMail(acct Account) {
	svc.notifier.Notify(&core.EmailMessage{
		To:      []mail.Address{{Name: acct.Name, Address: acct.Email}},
		Subject: "Password Reset",
		BodyStr: fmt.Sprintf(
			"Dear %s,\n\nUse the code below to reset your password:\n\n%s\n\n"+
				"It expires in %v. If you didn't request this, you can ignore this email.",
			acct.Name, acct.OTP, svc.conf.OTPExpirationDelta,
		),
	})
}

func (svc *service) sendApprovalMail(acct Account) {
	svc.notifier.Notify(&core.EmailMessage{
		To:           []mail.Address{{Name: acct.Name, Address: acct.Email}},
		Subject:      "Account Approved",
		TemplateName: "account-approved",
		TemplateData: acct,
	})
}
