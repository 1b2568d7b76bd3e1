package users

type UserRepo interface {
	Create(user *User) error
	Upsert(user *User) error
	Delete(email string) error
	GetByEmail(email string) (*User, error)
	GetByID(ID string) (*User, error)
	SetBlocked(email string, blocked bool) error
}
