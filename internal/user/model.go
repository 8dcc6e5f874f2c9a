package user

import "time"

type User struct {
	ID            int64
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
	CreatedAt     time.Time
}
