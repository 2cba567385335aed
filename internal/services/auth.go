package services

import (
  "context"
  "fmt"
  "time"

  "gorm.io/gorm"

  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"

  "github.com/browsepilot-org/browsepilot-backend/internal/logger"
  "github.com/browsepilot-org/browsepilot-backend/internal/repos"
  "github.com/browsepilot-org/browsepilot-backend/internal/requestdata"
  "github.com/browsepilot-org/browsepilot-backend/internal/types"
  "github.com/browsepilot-org/browsepilot-backend/internal/utils"
)

type JWTClaims struct {
  jwt.RegisteredClaims
  Email       string      `json:"email,omitempty"`
}

type AuthService interface {
  RegisterUser(ctx context.Context, user *types.User, newOrganizationName string) error
  Login(ctx context.Context, email, password string) (string, error)

  SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)

  GetAccessTTL() time.Duration
}

type authService struct {
  db                *gorm.DB
  log               *logger.Logger
  userRepo          repos.UserRepo
  organizationRepo  repos.OrganizationRepo
  membershipRepo    repos.MembershipRepo
  jwtSecretKey      string
  accessTTL         time.Duration
}

func NewAuthService(
  db                *gorm.DB,
  log               *logger.Logger,
  userRepo          repos.UserRepo,
  organizationRepo  repos.OrganizationRepo,
  membershipRepo    repos.MembershipRepo,
  jwtSecretKey      string,
  accessTTL         time.Duration,
) AuthService {
  serviceLog := log.With("service", "AuthService")
  return &authService{
    db:               db,
    log:              serviceLog,
    userRepo:         userRepo,
    organizationRepo: organizationRepo,
    membershipRepo:   membershipRepo,
    jwtSecretKey:     jwtSecretKey,
    accessTTL:        accessTTL,
  }
}

//----------------------------------------------------------------------------------------------------------------------
// RegisterUser
//----------------------------------------------------------------------------------------------------------------------

func (as *authService) RegisterUser(ctx context.Context, user *types.User, newOrganizationName string) error {
  as.log.Info("Starting Register User now...")

  //1) Normalize User Fields
  utils.NormalizeUserFields(ctx, user)

  //2) Checks on user fields
  if vErr := utils.ValidateRegistrationInput(ctx, as.log, user); vErr != nil {
    return vErr
  }
  emailExists, err := as.userRepo.EmailExists(ctx, nil, user.Email)
  if err != nil {
    return fmt.Errorf("Failed checking user email '%s' existence: %w", user.Email, err)
  }
  if emailExists {
    return fmt.Errorf("email is already in use.")
  }

  //3) Hash Password
  if hErr := utils.HashPassword(ctx, as.log, user); hErr != nil {
    return hErr
  }

  //4) Transaction Body
  return as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    createdUsers, cErr := as.userRepo.Create(ctx, tx, []*types.User{user})
    if cErr != nil {
      return cErr
    }
    if newOrganizationName == "" {
      return nil
    }
    createdOrgs, oErr := as.organizationRepo.Create(ctx, tx, []*types.Organization{{Name: newOrganizationName}})
    if oErr != nil {
      return oErr
    }
    _, mErr := as.membershipRepo.Create(ctx, tx, []*types.Membership{{
      UserID:         createdUsers[0].ID,
      OrganizationID: createdOrgs[0].ID,
      Role:           "owner",
    }})
    return mErr
  })
}

//----------------------------------------------------------------------------------------------------------------------
// Login
//----------------------------------------------------------------------------------------------------------------------

func (as *authService) Login(ctx context.Context, email, password string) (string, error) {
  as.log.Info("Starting Login now...")

  if vErr := utils.ValidateLoginInput(ctx, as.log, email, password); vErr != nil {
    return "", vErr
  }

  foundUsers, err := as.userRepo.GetByEmails(ctx, nil, []string{email})
  if err != nil {
    return "", err
  }
  if len(foundUsers) == 0 {
    as.log.Warn("Login attempt for unknown email", "email", email)
    return "", fmt.Errorf("invalid email or password")
  }
  theUser := foundUsers[0]

  if err := utils.CheckPassword(theUser.Password, password); err != nil {
    as.log.Warn("Login attempt with wrong password", "userID", theUser.ID)
    return "", fmt.Errorf("invalid email or password")
  }

  return as.generateAccessToken(ctx, theUser)
}

func (as *authService) generateAccessToken(ctx context.Context, user *types.User) (string, error) {
  now := time.Now()
  claims := JWTClaims{
    RegisteredClaims: jwt.RegisteredClaims{
      Subject:   user.ID.String(),
      IssuedAt:  jwt.NewNumericDate(now),
      ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
    },
    Email: user.Email,
  }
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
  signed, err := token.SignedString([]byte(as.jwtSecretKey))
  if err != nil {
    as.log.Error("Failed to sign access token", "error", err)
    return "", fmt.Errorf("failed to sign access token: %w", err)
  }
  return signed, nil
}

//----------------------------------------------------------------------------------------------------------------------
// SetContextFromToken
//----------------------------------------------------------------------------------------------------------------------

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
  if tokenString == "" {
    return ctx, nil
  }
  parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
    return []byte(as.jwtSecretKey), nil
  })
  if err != nil {
    return ctx, fmt.Errorf("failed to parse token: %w", err)
  }
  claims, ok := parsedToken.Claims.(*JWTClaims)
  if !ok || !parsedToken.Valid {
    return ctx, fmt.Errorf("invalid or expired JWT token")
  }
  userID, err := uuid.Parse(claims.Subject)
  if err != nil {
    return ctx, fmt.Errorf("invalid user ID in token: %w", err)
  }
  rd := &requestdata.RequestData{
    TokenString: tokenString,
    UserID:      userID,
    Email:       claims.Email,
  }
  return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) GetAccessTTL() time.Duration {
  return as.accessTTL
}
