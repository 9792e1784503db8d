package models

import (
	"errors"
	"fmt"

	goval "github.com/go-passwd/validator"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/leebenson/conform"
	"golang.org/x/crypto/bcrypt"
)

// User represents a user of the application
type User struct {
	Model
	Fullname       string `json:"fullname" binding:"required,min=2"`
	Username       string `json:"username" gorm:"unique" binding:"required,min=2"`
	Telephone      string `json:"telephone" gorm:"default:null"`
	Email          string `json:"email" gorm:"unique;not null" binding:"required,email"`
	University     string `json:"university"`
	Password       string `json:"password,omitempty" gorm:"-" validate:"omitempty,min=4"`
	HashedPassword string `json:"-"`
	IsActive       bool   `json:"-" gorm:"default:true"`
	IsVerified     bool   `json:"is_verified"`
	ThumbNailURL   string `json:"thumbnail_url,omitempty"`
	DeviceToken    string `json:"-"`
	Online         bool   `json:"online"`
}

// UserSummary is the lightweight shape handed to presence listings and chat frames
type UserSummary struct {
	ID       uint   `json:"id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Fullname: u.Fullname, Email: u.Email}
}

type UserResponse struct {
	ID         uint   `json:"id"`
	Fullname   string `json:"fullname"`
	Username   string `json:"username"`
	Telephone  string `json:"telephone"`
	Email      string `json:"email"`
	University string `json:"university"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	UserResponse
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func ValidatePassword(password string) error {
	passwordValidator := goval.New(goval.MinLength(6, errors.New("password cant be less than 6 characters")),
		goval.MaxLength(15, errors.New("password cant be more than 15 characters")))
	err := passwordValidator.Validate(password)
	return err
}

func ValidateWhiteSpaces(data interface{}) error {
	return conform.Strings(data)
}

func TranslateError(err error, trans ut.Translator) (errs []error) {
	if err == nil {
		return nil
	}
	validatorErrs := err.(validator.ValidationErrors)
	for _, e := range validatorErrs {
		translatedErr := fmt.Errorf(e.Translate(trans) + "; ")
		errs = append(errs, translatedErr)
	}
	return errs
}

// VerifyPassword verifies the collected password with the user's hashed password
func (u *User) VerifyPassword(password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password))
	if err != nil {
		return err
	}
	return nil
}
