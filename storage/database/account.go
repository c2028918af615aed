package database

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

// accountRow mirrors the account table. Nullable timestamps go through
// sql.NullTime; everything else is NOT NULL with a zero-value default.
type accountRow struct {
	ID               string         `db:"id"`
	Name             string         `db:"name"`
	Username         string         `db:"username"`
	Email            string         `db:"email"`
	PhoneNumber      string         `db:"phone_number"`
	CountryCode      string         `db:"country_code"`
	DOB              sql.NullTime   `db:"dob"`
	Address          string         `db:"address"`
	Gender           string         `db:"gender"`
	ProfilePic       string         `db:"profile_pic"`
	Role             string         `db:"role"`
	Status           string         `db:"status"`
	Approval         string         `db:"approval"`
	Verified         bool           `db:"verified"`
	PasswordHash     []byte         `db:"password_hash"`
	OTP              string         `db:"otp"`
	OTPExpiry        sql.NullTime   `db:"otp_expiry"`
	AssignedTeachers pq.StringArray `db:"assigned_teachers"`
	AssignedStudents pq.StringArray `db:"assigned_students"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	LastLogin        sql.NullTime   `db:"last_login"`
}

type accountRepository struct {
	db *sqlx.DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) *accountRepository {
	return &accountRepository{db: db}
}

func (repo accountRepository) toRow(acct account.Account) accountRow {
	return accountRow{
		ID:               acct.ID,
		Name:             acct.Name,
		Username:         acct.Username,
		Email:            acct.Email,
		PhoneNumber:      acct.PhoneNumber,
		CountryCode:      acct.CountryCode,
		DOB:              sql.NullTime{Time: acct.DOB.UTC(), Valid: !acct.DOB.IsZero()},
		Address:          acct.Address,
		Gender:           acct.Gender,
		ProfilePic:       acct.ProfilePic,
		Role:             acct.Role,
		Status:           acct.Status,
		Approval:         acct.Approval,
		Verified:         acct.Verified,
		PasswordHash:     acct.PasswordHash,
		OTP:              acct.OTP,
		OTPExpiry:        sql.NullTime{Time: acct.OTPExpiry.UTC(), Valid: !acct.OTPExpiry.IsZero()},
		AssignedTeachers: pq.StringArray(acct.AssignedTeachers),
		AssignedStudents: pq.StringArray(acct.AssignedStudents),
		CreatedAt:        acct.CreatedAt.UTC(),
		UpdatedAt:        acct.UpdatedAt.UTC(),
		LastLogin:        sql.NullTime{Time: acct.LastLogin.UTC(), Valid: !acct.LastLogin.IsZero()},
	}
}

func (repo accountRepository) fromRow(row accountRow) account.Account {
	return account.Account{
		ID:               row.ID,
		Name:             row.Name,
		Username:         row.Username,
		Email:            row.Email,
		PhoneNumber:      row.PhoneNumber,
		CountryCode:      row.CountryCode,
		DOB:              row.DOB.Time,
		Address:          row.Address,
		Gender:           row.Gender,
		ProfilePic:       row.ProfilePic,
		Role:             row.Role,
		Status:           row.Status,
		Approval:         row.Approval,
		Verified:         row.Verified,
		PasswordHash:     row.PasswordHash,
		OTP:              row.OTP,
		OTPExpiry:        row.OTPExpiry.Time,
		AssignedTeachers: row.AssignedTeachers,
		AssignedStudents: row.AssignedStudents,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
		LastLogin:        row.LastLogin.Time,
	}
}

func (repo accountRepository) fromRows(rows []accountRow) []account.Account {
	accts := make([]account.Account, 0, len(rows))
	for _, row := range rows {
		accts = append(accts, repo.fromRow(row))
	}
	return accts
}

// trapNoRowsErr maps psql "no rows" err to account.ErrNotFound
func (repo accountRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return account.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo accountRepository) CheckUniqueness(ctx context.Context, email, phone string, excluded ...account.Account) error {
	exclIDs := make(pq.StringArray, 0, len(excluded))
	for _, acct := range excluded {
		exclIDs = append(exclIDs, acct.ID)
	}

	check := func(where, val string, sentinel error) error {
		var exists bool
		q := `SELECT EXISTS (SELECT 1 FROM account WHERE ` + where + ` AND status <> 'DELETED' AND id <> ALL($2))`
		if err := repo.db.GetContext(ctx, &exists, q, val, exclIDs); err != nil {
			return errors.Wrap(err, "checking account uniqueness")
		}
		if exists {
			return sentinel
		}
		return nil
	}

	if email != "" {
		if err := check("lower(email) = lower($1)", email, account.ErrEmailExists); err != nil {
			return err
		}
	}
	if phone != "" {
		if err := check("phone_number = $1", phone, account.ErrPhoneExists); err != nil {
			return err
		}
	}
	return nil
}

const insertAccountSQL = `
INSERT INTO account (id, name, username, email, phone_number, country_code, dob, address, gender, profile_pic,
                     role, status, approval, verified, password_hash, otp, otp_expiry,
                     assigned_teachers, assigned_students, created_at, updated_at, last_login)
VALUES (:id, :name, :username, :email, :phone_number, :country_code, :dob, :address, :gender, :profile_pic,
        :role, :status, :approval, :verified, :password_hash, :otp, :otp_expiry,
        :assigned_teachers, :assigned_students, :created_at, :updated_at, :last_login)`

func (repo accountRepository) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	acct.ID = uuid.New().String()
	if _, err := repo.db.NamedExecContext(ctx, insertAccountSQL, repo.toRow(acct)); err != nil {
		return account.Account{}, errors.Wrap(err, "inserting account")
	}
	return acct, nil
}

func (repo accountRepository) GetAccount(ctx context.Context, filter account.GetFilter) (account.Account, error) {
	q := `SELECT * FROM account WHERE `
	var arg interface{}

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return account.Account{}, account.ErrNotFound
		}
		q += `id = $1`
		arg = filter.ID
	case filter.EmailOrPhone != "":
		q += `(lower(email) = lower($1) OR phone_number = $1)`
		arg = filter.EmailOrPhone
	case filter.Role != "":
		q += `role = $1`
		arg = filter.Role
	default:
		return account.Account{}, account.ErrNotFound
	}

	if !filter.IncludeDeleted {
		q += ` AND status <> 'DELETED'`
	}
	q += ` ORDER BY created_at LIMIT 1`

	var row accountRow
	if err := repo.db.GetContext(ctx, &row, q, arg); err != nil {
		return account.Account{}, repo.trapNoRowsErr(err, "finding account")
	}
	return repo.fromRow(row), nil
}

func (repo accountRepository) FilterAccounts(ctx context.Context, filter account.QueryFilter) (account.Page, error) {
	where := `status <> 'DELETED'`
	args := make([]interface{}, 0, 3)
	arg := func(val interface{}) string {
		args = append(args, val)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Role != "" {
		where += ` AND role = ` + arg(filter.Role)
	} else {
		// the console manages teachers and students; admins stay out of listings
		where += ` AND role <> 'ADMIN'`
	}
	if filter.Status != "" {
		where += ` AND status = ` + arg(filter.Status)
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where += ` AND (name ILIKE ` + p + ` OR username ILIKE ` + p + ` OR email ILIKE ` + p + ` OR phone_number ILIKE ` + p + `)`
	}

	page := account.Page{Page: filter.Page, Limit: filter.Limit}
	if err := repo.db.GetContext(ctx, &page.Count, `SELECT COUNT(*) FROM account WHERE `+where, args...); err != nil {
		return account.Page{}, errors.Wrap(err, "counting accounts")
	}
	page.TotalPages = (page.Count + filter.Limit - 1) / filter.Limit

	q := `SELECT * FROM account WHERE ` + where + ` ORDER BY ` + orderBy(filter.Ordering) +
		` LIMIT ` + arg(filter.Limit) + ` OFFSET ` + arg((filter.Page-1)*filter.Limit)
	var rows []accountRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return account.Page{}, errors.Wrap(err, "querying accounts")
	}
	page.Docs = repo.fromRows(rows)
	return page, nil
}

// orderedColumns are the columns listings may sort on.
var orderedColumns = map[string]bool{
	"name": true, "username": true, "email": true, "role": true,
	"created_at": true, "updated_at": true, "last_login": true,
}

func orderBy(ordering []core.DBOrdering) string {
	terms := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if orderedColumns[ord.Field] {
			terms = append(terms, ord.String())
		}
	}
	if len(terms) == 0 {
		return "created_at DESC"
	}
	return strings.Join(terms, ", ")
}

func (repo accountRepository) PendingAccounts(ctx context.Context) ([]account.Account, error) {
	var rows []accountRow
	q := `SELECT * FROM account WHERE approval = 'PENDING' AND status = 'ACTIVE' ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying pending accounts")
	}
	return repo.fromRows(rows), nil
}

const updateAccountSQL = `
UPDATE account
SET name = :name, username = :username, email = :email, phone_number = :phone_number,
    country_code = :country_code, dob = :dob, address = :address, gender = :gender,
    profile_pic = :profile_pic, status = :status, approval = :approval, verified = :verified,
    password_hash = :password_hash, otp = :otp, otp_expiry = :otp_expiry,
    assigned_teachers = :assigned_teachers, assigned_students = :assigned_students,
    updated_at = :updated_at, last_login = :last_login
WHERE id = :id`

func (repo accountRepository) UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	if _, err := repo.db.NamedExecContext(ctx, updateAccountSQL, repo.toRow(acct)); err != nil {
		return account.Account{}, errors.Wrap(err, "updating account")
	}
	return acct, nil
}

// AssignPair links both sides of a teacher/student assignment in one
// transaction so the mirror sets cannot drift apart. Adding an id that is
// already in the set is a no-op.
func (repo accountRepository) AssignPair(ctx context.Context, teacherID, studentID string) error {
	return repo.inTx(ctx, "assigning accounts", func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		q := `UPDATE account
              SET assigned_students = array_append(assigned_students, $2), updated_at = $3
              WHERE id = $1 AND NOT ($2 = ANY (assigned_students))`
		if _, err := tx.ExecContext(ctx, q, teacherID, studentID, now); err != nil {
			return err
		}
		q = `UPDATE account
             SET assigned_teachers = array_append(assigned_teachers, $2), updated_at = $3
             WHERE id = $1 AND NOT ($2 = ANY (assigned_teachers))`
		_, err := tx.ExecContext(ctx, q, studentID, teacherID, now)
		return err
	})
}

func (repo accountRepository) UnassignPair(ctx context.Context, teacherID, studentID string) error {
	return repo.inTx(ctx, "unassigning accounts", func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		q := `UPDATE account SET assigned_students = array_remove(assigned_students, $2), updated_at = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, q, teacherID, studentID, now); err != nil {
			return err
		}
		q = `UPDATE account SET assigned_teachers = array_remove(assigned_teachers, $2), updated_at = $3 WHERE id = $1`
		_, err := tx.ExecContext(ctx, q, studentID, teacherID, now)
		return err
	})
}

// SoftDeleteAccount marks the account DELETED and scrubs its id from every
// other account's assignment sets in the same transaction.
func (repo accountRepository) SoftDeleteAccount(ctx context.Context, acct account.Account) error {
	return repo.inTx(ctx, "deleting account", func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		q := `UPDATE account
              SET status = 'DELETED', assigned_teachers = '{}', assigned_students = '{}', updated_at = $2
              WHERE id = $1`
		if _, err := tx.ExecContext(ctx, q, acct.ID, now); err != nil {
			return err
		}
		q = `UPDATE account
             SET assigned_teachers = array_remove(assigned_teachers, $1),
                 assigned_students = array_remove(assigned_students, $1),
                 updated_at = $2
             WHERE $1 = ANY (assigned_teachers) OR $1 = ANY (assigned_students)`
		_, err := tx.ExecContext(ctx, q, acct.ID, now)
		return err
	})
}

func (repo accountRepository) inTx(ctx context.Context, msg string, fn func(tx *sqlx.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, msg)
	}
	return errors.Wrap(tx.Commit(), msg)
}
