package utils

import (
  "context"
  "fmt"
  "strings"

  "golang.org/x/crypto/bcrypt"

  "github.com/browsepilot-org/browsepilot-backend/internal/logger"
  "github.com/browsepilot-org/browsepilot-backend/internal/types"
)

func NormalizeUserFields(ctx context.Context, user *types.User) {
  user.Email = strings.ToLower(strings.TrimSpace(user.Email))
  user.FirstName = strings.TrimSpace(user.FirstName)
  user.LastName = strings.TrimSpace(user.LastName)
}

func ValidateRegistrationInput(ctx context.Context, log *logger.Logger, user *types.User) error {
  //1) Check if user is empty
  if user == nil {
    log.Warn("User is nil, cannot proceed further. Returning error", "user", user)
    return fmt.Errorf("No user given, cannot proceed any further.")
  }

  //2) Check Email
  if user.Email == "" {
    log.Warn("Email is nil, cannot proceed further. Returning error", "email", user.Email)
    return fmt.Errorf("an email is required to register.")
  }

  //3) Check Password
  if user.Password == "" {
    log.Warn("Password is nil, cannot proceed further. Returning error")
    return fmt.Errorf("a password is required to register.")
  }

  //4) Check FirstName
  if user.FirstName == "" {
    log.Warn("First Name is nil, cannot proceed further. Returning error", "firstName", user.FirstName)
    return fmt.Errorf("a first name is required to register.")
  }

  //5) Check LastName
  if user.LastName == "" {
    log.Warn("Last Name is nil, cannot proceed further. Returning error", "lastName", user.LastName)
    return fmt.Errorf("a last name is required to register.")
  }
  return nil
}

func ValidateLoginInput(ctx context.Context, log *logger.Logger, email, password string) error {
  //1) Check Email
  if email == "" {
    log.Warn("Email is an empty string, Cannot proceed.", "email", email)
    return fmt.Errorf("Email is an empty string, Cannot proceed.")
  }

  //2) Check Password
  if password == "" {
    log.Warn("Password is an empty string, Cannot proceed.")
    return fmt.Errorf("Password is an empty string, Cannot proceed.")
  }
  return nil
}

func HashPassword(ctx context.Context, log *logger.Logger, user *types.User) error {
  hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
  if err != nil {
    log.Warn("Failure to hash password for user. Returning error", "error", err)
    return fmt.Errorf("Failed to hash password for user.")
  }
  user.Password = string(hashedPassword)
  return nil
}

func CheckPassword(hashed, plain string) error {
  return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
