package models

import "time"

// Origin classifies where a species comes from relative to the catalog's region.
type Origin string

const (
	OriginNative  Origin = "Native"
	OriginEndemic Origin = "Endemic"
	OriginExotic  Origin = "Exotic"
)

// Valid reports whether o is one of the known origins.
func (o Origin) Valid() bool {
	switch o {
	case OriginNative, OriginEndemic, OriginExotic:
		return true
	}
	return false
}

// PlantType is the growth-form category used for browsing.
type PlantType string

const (
	PlantTypeTree   PlantType = "Tree"
	PlantTypeShrub  PlantType = "Shrub"
	PlantTypeHerb   PlantType = "Herb"
	PlantTypeCactus PlantType = "Cactus"
	PlantTypeOrchid PlantType = "Orchid"
	PlantTypeOther  PlantType = "Other"
)

// PlantTypes lists every plant type in display order.
var PlantTypes = []PlantType{
	PlantTypeTree,
	PlantTypeShrub,
	PlantTypeHerb,
	PlantTypeCactus,
	PlantTypeOrchid,
	PlantTypeOther,
}

// Plant represents a species in the catalog.
// Plants are created by catalog sync and never deleted by the device.
type Plant struct {
	// ID is the catalog identifier. It never changes once assigned.
	ID string `json:"id" firestore:"id"`

	// ScientificName is the binomial name, used for ordering search results.
	ScientificName string `json:"scientificName" firestore:"scientificName"`

	// CommonNames are vernacular names in display order.
	CommonNames []string `json:"commonNames" firestore:"commonNames"`

	// Family is the botanical family (e.g. "Cactaceae").
	Family string `json:"family" firestore:"family"`

	Origin      Origin           `json:"origin" firestore:"origin"`
	Description PlantDescription `json:"description" firestore:"description"`
	Care        CareInstructions `json:"care" firestore:"care"`

	// Images are ordered image references (URLs or object keys).
	Images []string `json:"images" firestore:"images"`

	// Regions are the region tags the species is found in.
	// The remote document field keeps its historical name "region".
	Regions []string `json:"regions" firestore:"region"`

	PlantType PlantType `json:"plantType" firestore:"plantType"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// PlantDescription holds the free-text descriptive fields of a species.
type PlantDescription struct {
	Morphological        string    `json:"morphological" firestore:"morphological"`
	Habitat              string    `json:"habitat" firestore:"habitat"`
	Distribution         string    `json:"distribution" firestore:"distribution"`
	Phenology            Phenology `json:"phenology" firestore:"phenology"`
	EcologicalImportance string    `json:"ecologicalImportance" firestore:"ecologicalImportance"`
	Uses                 PlantUses `json:"uses" firestore:"uses"`
	ConservationStatus   string    `json:"conservationStatus" firestore:"conservationStatus"`
	Toxicity             string    `json:"toxicity,omitempty" firestore:"toxicity,omitempty"`
}

// Phenology describes flowering and fruiting seasons.
type Phenology struct {
	Flowering string `json:"flowering" firestore:"flowering"`
	Fruiting  string `json:"fruiting" firestore:"fruiting"`
}

// PlantUses describes traditional uses. Empty means unknown or none.
type PlantUses struct {
	Medicinal  string `json:"medicinal,omitempty" firestore:"medicinal,omitempty"`
	Culinary   string `json:"culinary,omitempty" firestore:"culinary,omitempty"`
	Ornamental string `json:"ornamental,omitempty" firestore:"ornamental,omitempty"`
	Artisanal  string `json:"artisanal,omitempty" firestore:"artisanal,omitempty"`
}

// CareInstructions are the care fields shown on the plant detail screen.
type CareInstructions struct {
	Watering       string `json:"watering" firestore:"watering"`
	Light          string `json:"light" firestore:"light"`
	Soil           string `json:"soil" firestore:"soil"`
	Fertilization  string `json:"fertilization" firestore:"fertilization"`
	Pruning        string `json:"pruning" firestore:"pruning"`
	PestManagement string `json:"pestManagement" firestore:"pestManagement"`
}
