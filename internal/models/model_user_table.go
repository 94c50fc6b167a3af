package models

import "time"

type User struct {
	// Email 登录邮箱，同时作为对外身份
	Email string `json:"email" db:"email"`
	// Password bcrypt 哈希
	Password  string    `json:"-" db:"password"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
