package db

import (
	"log"

	apiError "github.com/dormside/dormside/errors"
	"github.com/dormside/dormside/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type AuthRepository interface {
	CreateUser(user *models.User) (*models.User, error)
	IsEmailExist(email string) error
	FindUserByEmail(email string) (*models.User, error)
	FindUserByID(id uint) (*models.User, error)
	FindUserSummaries(ids []uint) ([]models.UserSummary, error)
	UpdateUser(user *models.User) error
	AddToBlackList(blacklist *models.Blacklist) error
	IsTokenInBlacklist(token string) bool
}

type authRepo struct {
	DB *gorm.DB
}

func NewAuthRepo(db *GormDB) AuthRepository {
	return &authRepo{db.DB}
}

func (a *authRepo) CreateUser(user *models.User) (*models.User, error) {
	if user == nil {
		log.Println("CreateUser error: user is nil")
		return nil, errors.New("user is nil")
	}
	result := a.DB.Create(user)
	if result.Error != nil {
		log.Printf("CreateUser error: %v", result.Error)
		return nil, result.Error
	}
	return user, nil
}

func (a *authRepo) IsEmailExist(email string) error {
	var count int64
	err := a.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	if err != nil {
		return errors.Wrap(err, "gorm count error")
	}
	if count > 0 {
		return errors.New("email already in use")
	}
	return nil
}

func (a *authRepo) FindUserByEmail(email string) (*models.User, error) {
	var user models.User
	err := a.DB.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *authRepo) FindUserByID(id uint) (*models.User, error) {
	var user models.User
	err := a.DB.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apiError.InActiveUserError
	}
	return &user, nil
}

// FindUserSummaries resolves a set of user ids to their lightweight summaries.
func (a *authRepo) FindUserSummaries(ids []uint) ([]models.UserSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := a.DB.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "gorm find error")
	}
	summaries := make([]models.UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, users[i].Summary())
	}
	return summaries, nil
}

func (a *authRepo) UpdateUser(user *models.User) error {
	return a.DB.Save(user).Error
}

func (a *authRepo) AddToBlackList(blacklist *models.Blacklist) error {
	result := a.DB.Create(blacklist)
	return result.Error
}

func (a *authRepo) IsTokenInBlacklist(token string) bool {
	var count int64
	if err := a.DB.Model(&models.Blacklist{}).Where("token = ?", token).Count(&count).Error; err != nil {
		log.Printf("IsTokenInBlacklist error: %v", err)
		return false
	}
	return count > 0
}
