// Package mapdata models the official map catalogue and reads it from the
// per-source JSON files kept in the repository.
package mapdata

// Source types accepted by the catalogue.
const (
	TypeSourcebook = "sourcebook"
	TypeAdventure  = "adventure"
	TypeBasic      = "basic"
	TypeMappack    = "mappack"
)

// OfficialMapData is the whole catalogue as deployed in one document.
type OfficialMapData struct {
	Sources []Source `json:"sources" validate:"required,dive"`
}

type Source struct {
	Type               string    `json:"type" validate:"oneof=sourcebook adventure basic mappack" jsonschema:"enum=sourcebook,enum=adventure,enum=basic,enum=mappack"`
	Name               string    `json:"name" validate:"required"`
	Description        string    `json:"description"`
	BackgroundImageKey string    `json:"backgroundImageKey" validate:"s3key"`
	Chapters           []Chapter `json:"chapters" validate:"required,min=1,dive"`
}

type Chapter struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Order int    `json:"order"`
	Maps  []Map  `json:"maps" validate:"required,min=1,dive"`
}

type Map struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	Order       int     `json:"order"`
	ImageKey    string  `json:"imageKey" validate:"s3key"`
	VideoKey    string  `json:"videoKey,omitempty" validate:"omitempty,s3key"`
	TokenScale  float64 `json:"tokenScale" validate:"gt=0,lt=1" jsonschema:"exclusiveMinimum=0,exclusiveMaximum=1"`
}
