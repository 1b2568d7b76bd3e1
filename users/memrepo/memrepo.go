package memrepo

import (
	"sync"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-course-server/internal/errors"
	"github.com/jrsteele09/go-course-server/users"
)

var _ users.UserRepo = (*UserRepo)(nil)

// UserRepo is a thread-safe in-memory users.UserRepo
type UserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

func New() *UserRepo {
	return &UserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
	}
}

// Create inserts a new user, failing if the email is already registered
func (ur *UserRepo) Create(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	email := users.NormaliseEmail(user.Email)
	if _, exists := ur.emailIds[email]; exists {
		return apperrors.ErrUserExists
	}
	ur.put(email, user)
	return nil
}

func (ur *UserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	ur.put(users.NormaliseEmail(user.Email), user)
	return nil
}

func (ur *UserRepo) put(email string, user *users.User) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = email
	stored := *user
	ur.users[user.ID] = &stored
	ur.emailIds[email] = user.ID
}

func (ur *UserRepo) Delete(email string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	email = users.NormaliseEmail(email)
	userID, ok := ur.emailIds[email]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	delete(ur.emailIds, email)
	delete(ur.users, userID)
	return nil
}

func (ur *UserRepo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userID, ok := ur.emailIds[users.NormaliseEmail(email)]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return ur.copyOf(userID)
}

func (ur *UserRepo) GetByID(ID string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.copyOf(ID)
}

func (ur *UserRepo) copyOf(userID string) (*users.User, error) {
	u, ok := ur.users[userID]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (ur *UserRepo) SetBlocked(email string, blocked bool) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	userID, ok := ur.emailIds[users.NormaliseEmail(email)]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	ur.users[userID].Blocked = blocked
	return nil
}
