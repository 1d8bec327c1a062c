// Package entities defines the GORM models for the skyglow database.
//
// # Reference entities
//
//   - Camera: sensor description keyed by model (bias, CFA pattern, header type)
//   - Observer: versioned person record keyed by (family_name, surname)
//   - Location: observing site keyed by (site_name, location), optionally randomized
//   - ROI: region of interest keyed by its normalized rectangle
//   - Config: flat (section, property) -> value store
//
// # Measurement entities
//
//   - Image: one registered frame, identified by its content hash
//   - SkyBrightness: per-channel mean and variance for one image
//
// Images reference cameras, observers and locations with restrictive foreign
// keys. Deleting an image cascades to its measurement.
package entities

// All returns every model in migration order
func All() []any {
	return []any{
		&Camera{},
		&Observer{},
		&Location{},
		&ROI{},
		&Config{},
		&Image{},
		&SkyBrightness{},
	}
}
