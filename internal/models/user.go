package models

import "time"

// User represents the device user's profile.
// Profiles are provisioned remotely and cached locally.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id" firestore:"id"`

	// Email is the user's email address.
	Email string `json:"email" firestore:"email"`

	// DisplayName is shown in the profile screen.
	DisplayName string `json:"displayName" firestore:"displayName"`

	// PhotoURL is an optional avatar reference.
	PhotoURL string `json:"photoURL,omitempty" firestore:"photoURL,omitempty"`

	Preferences UserPreferences `json:"preferences" firestore:"preferences"`

	// PlantCollectionIDs lists the user's PlantCollection record IDs, oldest first.
	PlantCollectionIDs []string `json:"plantCollection" firestore:"plantCollection"`

	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// UserPreferences are per-user settings.
type UserPreferences struct {
	Region        string `json:"region" firestore:"region"`
	Language      string `json:"language" firestore:"language"` // es | en
	Notifications bool   `json:"notifications" firestore:"notifications"`
	OfflineMode   bool   `json:"offlineMode" firestore:"offlineMode"`
}

// PlantCollection is a personal collection entry, created on confirmation.
// Entries are append-only; the same (UserID, PlantID) pair may appear more than once.
type PlantCollection struct {
	ID      string `json:"id" firestore:"id"`
	UserID  string `json:"userId" firestore:"userId"`
	PlantID string `json:"plantId" firestore:"plantId"`

	// Plant is a snapshot of the catalog record at confirmation time.
	Plant Plant `json:"plant" firestore:"plant"`

	AddedAt        time.Time `json:"addedAt" firestore:"addedAt"`
	Notes          string    `json:"notes,omitempty" firestore:"notes,omitempty"`
	PersonalImages []string  `json:"personalImages,omitempty" firestore:"personalImages,omitempty"`
}
