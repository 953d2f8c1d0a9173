// Package models defines the core domain records for plantid.
//
// # Records
//
// The device owns four record types:
//   - Plant: a species in the catalog, pulled from the remote catalog
//   - Identification: one capture attempt and its ranked predictions
//   - User: the device user's profile and collection index
//   - PlantCollection: a personal collection entry created on confirmation
//
// Plus one singleton, SyncMeta, describing the last full catalog pull.
//
// # Design Principles
//
// 1. **Identity is immutable**: records are upserted by ID, never renamed
// 2. **Relationships by ID**: records reference each other with ID strings,
// except PlantCollection which embeds a Plant snapshot taken at confirmation
// 3. **Absence is not an error**: lookups return nil when a record is missing
// 4. **Struct tags serve both stores**: `json` tags shape the local record body
// and the Postgres document, `firestore` tags shape the Firestore document
package models
