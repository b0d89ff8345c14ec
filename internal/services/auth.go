package services

import (
  "context"
  "fmt"
  "strings"
  "time"

  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"
  "golang.org/x/crypto/bcrypt"
  "gorm.io/gorm"

  "github.com/yungbote/prepgraph-backend/internal/apperr"
  "github.com/yungbote/prepgraph-backend/internal/logger"
  "github.com/yungbote/prepgraph-backend/internal/repos"
  "github.com/yungbote/prepgraph-backend/internal/requestdata"
  "github.com/yungbote/prepgraph-backend/internal/types"
)

type JWTClaims struct {
  jwt.RegisteredClaims
}

type RegisterUserInput struct {
  Email     string
  Password  string
  FirstName string
  LastName  string
}

type AuthService interface {
  RegisterUser(ctx context.Context, input RegisterUserInput) (*types.User, error)
  LoginUser(ctx context.Context, email, password string) (string, string, error)
  RefreshUser(ctx context.Context) (string, string, error)
  LogoutUser(ctx context.Context) error
  SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
  GetAccessTTL() time.Duration
}

type authService struct {
  db            *gorm.DB
  log           *logger.Logger
  userRepo      repos.UserRepo
  userTokenRepo repos.UserTokenRepo
  jwtSecretKey  string
  accessTTL     time.Duration
  refreshTTL    time.Duration
}

func NewAuthService(
  db *gorm.DB,
  baseLog *logger.Logger,
  userRepo repos.UserRepo,
  userTokenRepo repos.UserTokenRepo,
  jwtSecretKey string,
  accessTTL time.Duration,
  refreshTTL time.Duration,
) AuthService {
  return &authService{
    db:            db,
    log:           baseLog.With("service", "AuthService"),
    userRepo:      userRepo,
    userTokenRepo: userTokenRepo,
    jwtSecretKey:  jwtSecretKey,
    accessTTL:     accessTTL,
    refreshTTL:    refreshTTL,
  }
}

func (as *authService) RegisterUser(ctx context.Context, input RegisterUserInput) (*types.User, error) {
  email := strings.ToLower(strings.TrimSpace(input.Email))
  if email == "" || !strings.Contains(email, "@") {
    return nil, fmt.Errorf("%w: invalid email", apperr.ErrInvalidArgument)
  }
  if len(input.Password) < 8 {
    return nil, fmt.Errorf("%w: password must be at least 8 characters", apperr.ErrInvalidArgument)
  }

  existing, err := as.userRepo.GetByEmail(ctx, nil, email)
  if err != nil {
    return nil, fmt.Errorf("check existing user: %w", err)
  }
  if existing != nil {
    return nil, fmt.Errorf("%w: email already registered", apperr.ErrInvalidArgument)
  }

  hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
  if err != nil {
    return nil, fmt.Errorf("hash password: %w", err)
  }

  user := &types.User{
    ID:        uuid.New(),
    Email:     email,
    Password:  string(hash),
    FirstName: strings.TrimSpace(input.FirstName),
    LastName:  strings.TrimSpace(input.LastName),
  }
  if _, err := as.userRepo.Create(ctx, nil, []*types.User{user}); err != nil {
    return nil, fmt.Errorf("create user: %w", err)
  }
  return user, nil
}

func (as *authService) LoginUser(ctx context.Context, email, password string) (string, string, error) {
  email = strings.ToLower(strings.TrimSpace(email))
  user, err := as.userRepo.GetByEmail(ctx, nil, email)
  if err != nil {
    return "", "", fmt.Errorf("load user: %w", err)
  }
  if user == nil {
    return "", "", fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
  }
  if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
    return "", "", fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
  }

  var accessToken, refreshToken string
  txErr := as.runInTx(ctx, func(tx *gorm.DB) error {
    tok, genErr := as.generateAccessToken(user)
    if genErr != nil {
      return fmt.Errorf("generate access token: %w", genErr)
    }
    accessToken = tok
    refreshToken = uuid.New().String()
    userToken := &types.UserToken{
      ID:           uuid.New(),
      UserID:       user.ID,
      AccessToken:  accessToken,
      RefreshToken: refreshToken,
      ExpiresAt:    time.Now().Add(as.refreshTTL),
    }
    if _, cErr := as.userTokenRepo.Create(ctx, tx, []*types.UserToken{userToken}); cErr != nil {
      return fmt.Errorf("create user token: %w", cErr)
    }
    return nil
  })
  if txErr != nil {
    return "", "", txErr
  }
  return accessToken, refreshToken, nil
}

func (as *authService) RefreshUser(ctx context.Context) (string, string, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.RefreshToken == "" {
    return "", "", fmt.Errorf("%w: missing refresh token", apperr.ErrUnauthorized)
  }

  var accessToken, newRefreshToken string
  txErr := as.runInTx(ctx, func(tx *gorm.DB) error {
    foundTokens, ftErr := as.userTokenRepo.GetByRefreshTokens(ctx, tx, []string{rd.RefreshToken})
    if ftErr != nil {
      return fmt.Errorf("load refresh token: %w", ftErr)
    }
    if len(foundTokens) == 0 || foundTokens[0] == nil {
      return fmt.Errorf("%w: unknown refresh token", apperr.ErrUnauthorized)
    }
    existingToken := foundTokens[0]
    if existingToken.ExpiresAt.Before(time.Now()) {
      if dErr := as.userTokenRepo.FullDeleteByAccessTokens(ctx, tx, []string{existingToken.AccessToken}); dErr != nil {
        return fmt.Errorf("delete expired token: %w", dErr)
      }
      return fmt.Errorf("%w: refresh token expired", apperr.ErrUnauthorized)
    }

    users, uErr := as.userRepo.GetByIDs(ctx, tx, []uuid.UUID{existingToken.UserID})
    if uErr != nil {
      return fmt.Errorf("load user: %w", uErr)
    }
    if len(users) == 0 || users[0] == nil {
      return fmt.Errorf("%w: user not found", apperr.ErrUnauthorized)
    }

    tok, genErr := as.generateAccessToken(users[0])
    if genErr != nil {
      return fmt.Errorf("generate access token: %w", genErr)
    }
    accessToken = tok
    newRefreshToken = uuid.New().String()
    newToken := &types.UserToken{
      ID:           uuid.New(),
      UserID:       users[0].ID,
      AccessToken:  accessToken,
      RefreshToken: newRefreshToken,
      ExpiresAt:    time.Now().Add(as.refreshTTL),
    }
    if _, cErr := as.userTokenRepo.Create(ctx, tx, []*types.UserToken{newToken}); cErr != nil {
      return fmt.Errorf("create user token: %w", cErr)
    }
    if dErr := as.userTokenRepo.FullDeleteByAccessTokens(ctx, tx, []string{existingToken.AccessToken}); dErr != nil {
      return fmt.Errorf("remove rotated token: %w", dErr)
    }
    return nil
  })
  if txErr != nil {
    return "", "", txErr
  }
  return accessToken, newRefreshToken, nil
}

func (as *authService) LogoutUser(ctx context.Context) error {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.TokenString == "" {
    return fmt.Errorf("%w: missing access token", apperr.ErrUnauthorized)
  }
  return as.userTokenRepo.FullDeleteByAccessTokens(ctx, nil, []string{rd.TokenString})
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
  if tokenString == "" {
    return ctx, fmt.Errorf("%w: missing token", apperr.ErrUnauthorized)
  }
  parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
    if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
      return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
    }
    return []byte(as.jwtSecretKey), nil
  })
  if err != nil {
    return ctx, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
  }
  claims, ok := parsedToken.Claims.(*JWTClaims)
  if !ok || !parsedToken.Valid {
    return ctx, fmt.Errorf("%w: invalid token", apperr.ErrUnauthorized)
  }
  userID, err := uuid.Parse(claims.Subject)
  if err != nil {
    return ctx, fmt.Errorf("%w: invalid subject", apperr.ErrUnauthorized)
  }

  var refreshToken string
  foundTokens, ftErr := as.userTokenRepo.GetByAccessTokens(ctx, nil, []string{tokenString})
  if ftErr != nil {
    return ctx, fmt.Errorf("load user token: %w", ftErr)
  }
  if len(foundTokens) == 0 || foundTokens[0] == nil {
    return ctx, fmt.Errorf("%w: session revoked", apperr.ErrUnauthorized)
  }
  refreshToken = foundTokens[0].RefreshToken

  rd := &requestdata.RequestData{
    TokenString:  tokenString,
    RefreshToken: refreshToken,
    UserID:       userID,
  }
  return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) GetAccessTTL() time.Duration {
  return as.accessTTL
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
  claims := JWTClaims{
    RegisteredClaims: jwt.RegisteredClaims{
      // jti keeps tokens minted within the same second distinct.
      ID:        uuid.NewString(),
      Subject:   user.ID.String(),
      ExpiresAt: jwt.NewNumericDate(time.Now().Add(as.accessTTL)),
      IssuedAt:  jwt.NewNumericDate(time.Now()),
    },
  }
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
  return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) runInTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
  if as.db == nil {
    return fn(nil)
  }
  return as.db.WithContext(ctx).Transaction(fn)
}
