package models

import "time"

type UserRole string

const (
	RoleStudent          UserRole = "student"
	RoleCarrier          UserRole = "carrier"
	RoleCargoOwner       UserRole = "cargo-owner"
	RoleLogisticsCompany UserRole = "logistics-company"
	RoleTransportCompany UserRole = "transport-company"
	RoleLogitTrans       UserRole = "logit-trans"
	RoleManager          UserRole = "manager"
)

type StudentTariff string

const (
	TariffStandard StudentTariff = "standard"
	TariffVIP      StudentTariff = "vip"
)

// User идентифицируется по Telegram ID (строка) — выдачей и проверкой
// токенов занимается внешний сервис авторизации.
type User struct {
	TelegramID  string
	FirstName   string
	LastName    string
	Username    string
	Role        UserRole
	Tariff      *StudentTariff
	PhoneNumber *string
	CompanyName *string
	IsActive    bool
	IsVerified  bool
	Rating      float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Actor is the authenticated identity a handler passes into services.
type Actor struct {
	ID   string
	Role UserRole
}

type UserCreateInput struct {
	TelegramID  string
	FirstName   string
	LastName    string
	Username    string
	Role        UserRole
	Tariff      *StudentTariff
	PhoneNumber *string
	CompanyName *string
	IsVerified  bool
}
