package models

import "time"

type LocationLevel int16

const (
	LevelCountry LocationLevel = 1
	LevelState   LocationLevel = 2
	LevelCity    LocationLevel = 3
)

// Location — узел административного дерева страна→регион→город.
// ParentID и CountryID хранятся как простые идентификаторы; уровень 1
// не имеет ни родителя, ни страны (CountryID самого себя не дублируем).
type Location struct {
	ID             uint64
	Name           string
	Level          LocationLevel
	ParentID       *uint64
	CountryID      *uint64
	Latitude       *float64
	Longitude      *float64
	Code           *string
	AdditionalData map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (l *Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// HierarchyEntry is one step of the country-first ancestor chain.
type HierarchyEntry struct {
	ID    uint64        `json:"id"`
	Name  string        `json:"name"`
	Level LocationLevel `json:"level"`
}

type LocationMatch struct {
	ID         uint64        `json:"id"`
	Name       string        `json:"name"`
	Level      LocationLevel `json:"level"`
	FullName   string        `json:"full_name"`
	Latitude   *float64      `json:"latitude"`
	Longitude  *float64      `json:"longitude"`
	DistanceKm float64       `json:"distance_km,omitempty"`
}

type LocationChoice struct {
	ID             uint64            `json:"id"`
	Name           string            `json:"name"`
	Code           *string           `json:"code,omitempty"`
	Latitude       *float64          `json:"latitude,omitempty"`
	Longitude      *float64          `json:"longitude,omitempty"`
	AdditionalData map[string]string `json:"additional_data,omitempty"`
}

type LocationImportInput struct {
	Name           string
	Level          LocationLevel
	ParentID       *uint64
	CountryID      *uint64
	Latitude       *float64
	Longitude      *float64
	Code           *string
	AdditionalData map[string]string
}
