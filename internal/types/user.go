package types

import (
  "time"
  "github.com/google/uuid"
)

type User struct {
  ID                uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  Email             string          `gorm:"uniqueIndex;not null;column:email" json:"email"`
  Password          string          `gorm:"not null;column:password" json:"-"`
  FirstName         string          `gorm:"not null;column:first_name" json:"first_name"`
  LastName          string          `gorm:"not null;column:last_name" json:"last_name"`
  CreatedAt         time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt         time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string {
  return "user"
}

type UserToken struct {
  ID            uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID        uuid.UUID       `gorm:"index;not null"`
  User          *User           `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID"`
  AccessToken   string          `gorm:"uniqueIndex;not null;column:access_token" json:"access_token"`
  RefreshToken  string          `gorm:"uniqueIndex;not null;column:refresh_token" json:"refresh_token"`
  ExpiresAt     time.Time       `gorm:"column:expires_at" json:"expires_at"`
  CreatedAt     time.Time       `gorm:"not null;default:now()"`
  UpdatedAt     time.Time       `gorm:"not null;default:now()"`
}

func (UserToken) TableName() string {
  return "user_token"
}
