package models

import "time"

// RecordType names one of the locally stored record types.
type RecordType string

const (
	RecordPlant           RecordType = "plants"
	RecordIdentification  RecordType = "identifications"
	RecordUser            RecordType = "users"
	RecordPlantCollection RecordType = "plant_collections"
)

// RecordTypes lists every record type.
var RecordTypes = []RecordType{
	RecordPlant,
	RecordIdentification,
	RecordUser,
	RecordPlantCollection,
}

// Valid reports whether t is a known record type.
func (t RecordType) Valid() bool {
	for _, known := range RecordTypes {
		if t == known {
			return true
		}
	}
	return false
}

// SyncMeta describes the last full catalog pull. Display and diagnostics only.
type SyncMeta struct {
	ModelVersion string    `json:"modelVersion"`
	LastSync     time.Time `json:"lastSync"`

	// TotalSize is the number of plant records held locally after the sync.
	TotalSize int `json:"totalSize"`

	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// CaptureLocation is the location reported by the capture provider.
type CaptureLocation struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Region       string  `json:"region"`
	Municipality string  `json:"municipality"`
	State        string  `json:"state"`
	Country      string  `json:"country"`
}

// Capture is an image handed over by the capture provider.
type Capture struct {
	// Handle is the image reference passed to the inference capability (a URI or local path).
	Handle    string           `json:"handle"`
	Width     int              `json:"width"`
	Height    int              `json:"height"`
	Timestamp time.Time        `json:"timestamp"`
	Location  *CaptureLocation `json:"location,omitempty"`
}

// IdentificationLocation narrows a capture location to what an identification stores.
func (c Capture) IdentificationLocation() *Location {
	if c.Location == nil {
		return nil
	}
	return &Location{
		Latitude:     c.Location.Latitude,
		Longitude:    c.Location.Longitude,
		Region:       c.Location.Region,
		Municipality: c.Location.Municipality,
	}
}

// OutboxKind identifies the remote write an outbox entry performs.
type OutboxKind string

const (
	OutboxSetIdentification OutboxKind = "identification.set"
	OutboxConfirmation      OutboxKind = "identification.confirm"
	OutboxSetCollection     OutboxKind = "collection.set"
	OutboxImageUpload       OutboxKind = "image.upload"
)

// OutboxEntry is a pending remote write.
type OutboxEntry struct {
	ID            int64
	Kind          OutboxKind
	RecordID      string
	Payload       []byte
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
}
