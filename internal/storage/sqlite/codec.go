package sqlite

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Current schema versions of the JSON record bodies.
// Bump the version and register a migration from the previous one when a body changes shape.
const (
	plantSchemaVersion          = 2
	identificationSchemaVersion = 1
	userSchemaVersion           = 1
	collectionSchemaVersion     = 2
	syncMetaSchemaVersion       = 1
)

// migration upgrades a decoded body from version N to N+1 in place.
type migration func(doc map[string]any) error

var plantMigrations = map[int]migration{
	1: plantV1ToV2,
}

var collectionMigrations = map[int]migration{
	1: func(doc map[string]any) error {
		plant, ok := doc["plant"].(map[string]any)
		if !ok {
			return nil
		}
		return plantV1ToV2(plant)
	},
}

// v1 origin labels, as written by the first catalog import.
var legacyOrigins = map[string]string{
	"Nativa":   "Native",
	"Endémica": "Endemic",
	"Exótica":  "Exotic",
}

// plantV1ToV2 renames "region" to "regions" and maps legacy origin labels.
func plantV1ToV2(doc map[string]any) error {
	if region, ok := doc["region"]; ok {
		if _, exists := doc["regions"]; !exists {
			doc["regions"] = region
		}
		delete(doc, "region")
	}
	if origin, ok := doc["origin"].(string); ok {
		if mapped, legacy := legacyOrigins[origin]; legacy {
			doc["origin"] = mapped
		}
	}
	return nil
}

func encodeRecord(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	return string(data), nil
}

// decodeRecord decodes body written at version into out, running every
// registered migration between version and current first.
func decodeRecord(body string, version, current int, migrations map[int]migration, out any) error {
	if version > current {
		return fmt.Errorf("record schema version %d is newer than supported version %d", version, current)
	}
	if version == current {
		if err := json.Unmarshal([]byte(body), out); err != nil {
			return fmt.Errorf("failed to decode record: %w", err)
		}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode v%d record: %w", version, err)
	}

	for v := version; v < current; v++ {
		migrate, ok := migrations[v]
		if !ok {
			return fmt.Errorf("no migration from schema version %d", v)
		}
		if err := migrate(doc); err != nil {
			return fmt.Errorf("failed to migrate record from schema version %d: %w", v, err)
		}
	}

	upgraded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to re-encode migrated record: %w", err)
	}
	if err := json.Unmarshal(upgraded, out); err != nil {
		return fmt.Errorf("failed to decode migrated record: %w", err)
	}
	return nil
}
