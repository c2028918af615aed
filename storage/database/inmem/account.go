package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

type accountRepository struct {
	db *DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db}
}

// query snapshots all rows; callers must hold at least a read lock.
func (repo *accountRepository) query() []account.Account {
	accts := make([]account.Account, 0, len(repo.db.accounts))
	for _, acct := range repo.db.accounts {
		accts = append(accts, *acct)
	}
	return accts
}

func isExcluded(acct account.Account, excluded []account.Account) bool {
	for _, excl := range excluded {
		if excl.ID == acct.ID {
			return true
		}
	}
	return false
}

func (repo *accountRepository) CheckUniqueness(ctx context.Context, email, phone string, excluded ...account.Account) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, acct := range repo.query() {
		if acct.IsDeleted() || isExcluded(acct, excluded) {
			continue
		}
		if email != "" && strings.EqualFold(acct.Email, email) {
			return account.ErrEmailExists
		}
		if phone != "" && acct.PhoneNumber == phone {
			return account.ErrPhoneExists
		}
	}
	return nil
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	acct.ID = uuid.New().String()
	repo.db.accounts[acct.ID] = &acct
	return acct, nil
}

func (repo *accountRepository) GetAccount(ctx context.Context, filter account.GetFilter) (account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	accts := repo.query()
	sort.Slice(accts, func(i, j int) bool { return accts[i].CreatedAt.Before(accts[j].CreatedAt) })

	for _, acct := range accts {
		if acct.IsDeleted() && !filter.IncludeDeleted {
			continue
		}
		switch {
		case filter.ID != "":
			if acct.ID == filter.ID {
				return acct, nil
			}
		case filter.EmailOrPhone != "":
			if strings.EqualFold(acct.Email, filter.EmailOrPhone) || acct.PhoneNumber == filter.EmailOrPhone {
				return acct, nil
			}
		case filter.Role != "":
			if acct.Role == filter.Role {
				return acct, nil
			}
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) FilterAccounts(ctx context.Context, filter account.QueryFilter) (account.Page, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	matches := make([]account.Account, 0)
	for _, acct := range repo.query() {
		if acct.IsDeleted() {
			continue
		}
		if filter.Role != "" {
			if acct.Role != filter.Role {
				continue
			}
		} else if acct.IsAdmin() {
			continue
		}
		if filter.Status != "" && acct.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !matchesSearch(acct, filter.Search) {
			continue
		}
		matches = append(matches, acct)
	}
	sortAccounts(matches, filter.Ordering)

	page := account.Page{
		Page:       filter.Page,
		Limit:      filter.Limit,
		Count:      len(matches),
		TotalPages: (len(matches) + filter.Limit - 1) / filter.Limit,
	}
	start := (filter.Page - 1) * filter.Limit
	if start > len(matches) {
		start = len(matches)
	}
	end := start + filter.Limit
	if end > len(matches) {
		end = len(matches)
	}
	page.Docs = matches[start:end]
	return page, nil
}

// sortAccounts honours the first recognised ordering term; newest first
// otherwise.
func sortAccounts(accts []account.Account, ordering []core.DBOrdering) {
	for _, ord := range ordering {
		var less func(i, j int) bool
		switch ord.Field {
		case "name":
			less = func(i, j int) bool { return accts[i].Name < accts[j].Name }
		case "email":
			less = func(i, j int) bool { return accts[i].Email < accts[j].Email }
		case "created_at":
			less = func(i, j int) bool { return accts[i].CreatedAt.Before(accts[j].CreatedAt) }
		default:
			continue
		}
		if !ord.Ascending {
			asc := less
			less = func(i, j int) bool { return asc(j, i) }
		}
		sort.Slice(accts, less)
		return
	}
	sort.Slice(accts, func(i, j int) bool { return accts[i].CreatedAt.After(accts[j].CreatedAt) })
}

func matchesSearch(acct account.Account, search string) bool {
	search = strings.ToLower(search)
	for _, val := range []string{acct.Name, acct.Username, acct.Email, acct.PhoneNumber} {
		if strings.Contains(strings.ToLower(val), search) {
			return true
		}
	}
	return false
}

func (repo *accountRepository) PendingAccounts(ctx context.Context) ([]account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	pending := make([]account.Account, 0)
	for _, acct := range repo.query() {
		if acct.Approval == account.ApprovalPending && acct.Status == account.StatusActive {
			pending = append(pending, acct)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	return pending, nil
}

func (repo *accountRepository) UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.accounts[acct.ID]; !ok {
		return account.Account{}, account.ErrNotFound
	}
	repo.db.accounts[acct.ID] = &acct
	return acct, nil
}

func (repo *accountRepository) AssignPair(ctx context.Context, teacherID, studentID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	teacher, ok := repo.db.accounts[teacherID]
	if !ok {
		return account.ErrNotFound
	}
	student, ok := repo.db.accounts[studentID]
	if !ok {
		return account.ErrNotFound
	}
	if !teacher.HasStudent(studentID) {
		teacher.AssignedStudents = append(teacher.AssignedStudents, studentID)
	}
	if !student.HasTeacher(teacherID) {
		student.AssignedTeachers = append(student.AssignedTeachers, teacherID)
	}
	return nil
}

func (repo *accountRepository) UnassignPair(ctx context.Context, teacherID, studentID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if teacher, ok := repo.db.accounts[teacherID]; ok {
		teacher.AssignedStudents = remove(teacher.AssignedStudents, studentID)
	}
	if student, ok := repo.db.accounts[studentID]; ok {
		student.AssignedTeachers = remove(student.AssignedTeachers, teacherID)
	}
	return nil
}

func (repo *accountRepository) SoftDeleteAccount(ctx context.Context, acct account.Account) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	target, ok := repo.db.accounts[acct.ID]
	if !ok {
		return account.ErrNotFound
	}
	target.Status = account.StatusDeleted
	target.AssignedTeachers = nil
	target.AssignedStudents = nil
	for _, other := range repo.db.accounts {
		other.AssignedTeachers = remove(other.AssignedTeachers, acct.ID)
		other.AssignedStudents = remove(other.AssignedStudents, acct.ID)
	}
	return nil
}

func remove(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
