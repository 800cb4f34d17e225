package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func copyUser(usr user.User) user.User {
	usr.Roles = append([]string{}, usr.Roles...)
	if usr.IsActive != nil {
		active := *usr.IsActive
		usr.IsActive = &active
	}
	return usr
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedUsers ...user.User) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.checkEmail(email, excludedUsers...)
}

func (repo *userRepository) checkEmail(email string, excludedUsers ...user.User) error {
	for _, usr := range repo.db.users {
		if usr.Email != email {
			continue
		}
		excluded := false
		for _, excl := range excludedUsers {
			if excl.ID == usr.ID {
				excluded = true
				break
			}
		}
		if !excluded {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) create(usr user.User) error {
	if err := repo.checkEmail(usr.Email); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
	}
	repo.db.users[usr.ID] = copyUser(usr)
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if err := repo.create(usr); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) CreateStudent(_ context.Context, usr user.User, st user.Student) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if err := repo.create(usr); err != nil {
		return user.User{}, err
	}
	st.UserID = usr.ID
	repo.db.students[usr.ID] = st
	return usr, nil
}

func (repo *userRepository) GetStudent(_ context.Context, userID string) (user.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	st, ok := repo.db.students[userID]
	if !ok {
		return user.Student{}, user.ErrNotFound
	}
	return st, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if filter != nil && !matchUser(usr, filter) {
			continue
		}
		users = append(users, copyUser(usr))
	}
	sortUsers(users, ordering)
	return users, nil
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(usr.Name), s) &&
			!strings.Contains(strings.ToLower(usr.Email), s) &&
			!strings.Contains(strings.ToLower(usr.Phone), s) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		found := false
		for _, role := range filter.Roles {
			if usr.HasRole(role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && usr.Active() != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

// sortUsers orders by the first known field of `ordering`, latest created first by default.
func sortUsers(users []user.User, ordering []core.DBOrdering) {
	less := func(a, b user.User) bool { return a.CreatedAt.After(b.CreatedAt) }
	for _, ord := range ordering {
		asc := ord.Ascending
		var cmp func(a, b user.User) int
		switch ord.Field {
		case "name":
			cmp = func(a, b user.User) int { return strings.Compare(a.Name, b.Name) }
		case "email":
			cmp = func(a, b user.User) int { return strings.Compare(a.Email, b.Email) }
		case "created_at":
			cmp = func(a, b user.User) int { return a.CreatedAt.Compare(b.CreatedAt) }
		case "last_login":
			cmp = func(a, b user.User) int { return a.LastLogin.Compare(b.LastLogin) }
		default:
			continue
		}
		less = func(a, b user.User) bool {
			if asc {
				return cmp(a, b) < 0
			}
			return cmp(a, b) > 0
		}
		break
	}
	sort.SliceStable(users, func(i, j int) bool { return less(users[i], users[j]) })
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	switch {
	case filter.ID != "":
		if usr, ok := repo.db.users[filter.ID]; ok {
			return copyUser(usr), nil
		}
	case filter.Email != "":
		for _, usr := range repo.db.users {
			if usr.Email == filter.Email {
				return copyUser(usr), nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkEmail(usr.Email, usr); err != nil {
		return user.User{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
	}
	repo.db.users[usr.ID] = copyUser(usr)
	return usr, nil
}

func (repo *userRepository) DeleteUsers(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.users, id)
		delete(repo.db.students, id)
	}
	return nil
}
