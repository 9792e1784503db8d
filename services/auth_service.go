package services

import (
	"errors"
	"log"
	"net/http"

	"github.com/dormside/dormside/config"
	"github.com/dormside/dormside/db"
	apiError "github.com/dormside/dormside/errors"
	"github.com/dormside/dormside/models"
	"github.com/dormside/dormside/services/jwt"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService interface
type AuthService interface {
	SignupUser(request *models.User) (*models.User, error)
	LoginUser(loginRequest *models.LoginRequest) (*models.LoginResponse, *apiError.Error)
	LogoutUser(token, email string) *apiError.Error
	GetUserProfile(userID uint) (*models.User, error)
}

// authService struct
type authService struct {
	Config   *config.Config
	authRepo db.AuthRepository
}

// NewAuthService instantiate an authService
func NewAuthService(authRepo db.AuthRepository, conf *config.Config) AuthService {
	return &authService{
		Config:   conf,
		authRepo: authRepo,
	}
}

func (s *authService) SignupUser(user *models.User) (*models.User, error) {
	if user == nil {
		log.Println("SignupUser error: user is nil")
		return nil, errors.New("user is nil")
	}
	if user.Email == "" {
		log.Println("SignupUser error: email is empty")
		return nil, errors.New("email is empty")
	}

	if err := models.ValidateWhiteSpaces(user); err != nil {
		log.Printf("SignupUser conform error: %v", err)
		return nil, err
	}

	if err := models.ValidatePassword(user.Password); err != nil {
		return nil, apiError.New(err.Error(), http.StatusBadRequest)
	}

	if err := s.authRepo.IsEmailExist(user.Email); err != nil {
		log.Printf("SignupUser error: %v", err)
		return nil, apiError.GetUniqueContraintError(err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("SignupUser error hashing password: %v", err)
		return nil, apiError.ErrInternalServerError
	}
	user.HashedPassword = string(hashedPassword)
	user.Password = ""

	user, err = s.authRepo.CreateUser(user)
	if err != nil {
		log.Printf("SignupUser error creating user: %v", err)
		return nil, apiError.ErrInternalServerError
	}

	return user, nil
}

func GenerateHashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hashedPassword), err
}

// LoginUser logs in a user and returns the login response
func (a *authService) LoginUser(loginRequest *models.LoginRequest) (*models.LoginResponse, *apiError.Error) {
	foundUser, err := a.authRepo.FindUserByEmail(loginRequest.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apiError.New("invalid email or password", http.StatusUnprocessableEntity)
		}
		log.Printf("Error finding user by email: %v", err)
		return nil, apiError.New("unable to find user", http.StatusInternalServerError)
	}

	if !foundUser.IsActive {
		return nil, apiError.New("account is deactivated", http.StatusUnauthorized)
	}

	if err := foundUser.VerifyPassword(loginRequest.Password); err != nil {
		log.Printf("Invalid password for user %s", foundUser.Email)
		return nil, apiError.ErrInvalidPassword
	}

	accessToken, refreshToken, err := jwt.GenerateTokenPair(foundUser.Email, a.Config.JWTSecret, foundUser.ID)
	if err != nil {
		log.Printf("Error generating token pair for user %s: %v", foundUser.Email, err)
		return nil, apiError.ErrInternalServerError
	}

	return &models.LoginResponse{
		UserResponse: models.UserResponse{
			ID:         foundUser.ID,
			Fullname:   foundUser.Fullname,
			Username:   foundUser.Username,
			Telephone:  foundUser.Telephone,
			Email:      foundUser.Email,
			University: foundUser.University,
		},
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// LogoutUser blacklists the presented access token
func (a *authService) LogoutUser(token, email string) *apiError.Error {
	blacklist := &models.Blacklist{
		Email: email,
		Token: token,
	}
	if err := a.authRepo.AddToBlackList(blacklist); err != nil {
		log.Printf("LogoutUser error: %v", err)
		return apiError.ErrInternalServerError
	}
	return nil
}

func (a *authService) GetUserProfile(userID uint) (*models.User, error) {
	user, err := a.authRepo.FindUserByID(userID)
	if err != nil {
		log.Printf("GetUserProfile error: %v", err)
		return nil, err
	}
	return user, nil
}
