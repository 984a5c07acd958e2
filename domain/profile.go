package domain

import (
	"errors"
	"time"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrConstraintViolation = errors.New("constraint violation")
)

const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

const (
	Level100          = "100"
	Level200          = "200"
	Level300          = "300"
	Level400          = "400"
	Level500          = "500"
	LevelPostgraduate = "postgraduate"
)

// Levels lists the accepted academic levels in display order.
var Levels = []string{Level100, Level200, Level300, Level400, Level500, LevelPostgraduate}

// Departments is the catalogue offered on the registration form.
var Departments = []string{
	"Computer Science",
	"Engineering",
	"Medicine",
	"Law",
	"Business Administration",
	"Economics",
	"Psychology",
	"Biology",
	"Chemistry",
	"Physics",
	"Mathematics",
	"English",
	"Other",
}

type Profile struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	Email      string    `gorm:"column:email" json:"email"`
	Name       string    `gorm:"column:name;not null" json:"name"`
	School     string    `gorm:"column:school;not null" json:"school"`
	Department string    `gorm:"column:department;not null" json:"department"`
	Level      string    `gorm:"column:level;not null;check:chk_profiles_level,level IN ('100','200','300','400','500','postgraduate')" json:"level"`
	Role       string    `gorm:"column:role;not null;default:buyer" json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Profile) TableName() string {
	return "profiles"
}
