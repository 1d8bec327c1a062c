// Package defaults resolves the station defaults (camera, observer,
// location, region of interest and optics) stored in the configs table.
package defaults

import (
	"context"
	"strconv"

	"github.com/skyglow/skyglow-go/internal/datastore"
	"github.com/skyglow/skyglow-go/internal/datastore/entities"
	"github.com/skyglow/skyglow-go/internal/datastore/repository"
	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/geometry"
	"github.com/skyglow/skyglow-go/internal/metadata"
)

// Section is the configs section holding the defaults
const Section = "defaults"

// Property names within Section
const (
	KeyCamera          = "camera"
	KeyObserverFamily  = "observer_family_name"
	KeyObserverSurname = "observer_surname"
	KeySiteName        = "site_name"
	KeyLocation        = "location"
	KeyROI             = "roi"
	KeyFocalLength     = "focal_length"
	KeyFNumber         = "f_number"
)

// ErrMissingDefault is returned when a required default is unset or points
// at a row that no longer exists
var ErrMissingDefault = errors.NewStd("default not configured")

// DefaultCameraProvider supplies the camera new images are registered with
type DefaultCameraProvider interface {
	DefaultCamera(ctx context.Context) (*entities.Camera, error)
}

// DefaultObserverProvider supplies the current version of the default observer
type DefaultObserverProvider interface {
	DefaultObserver(ctx context.Context) (*entities.Observer, error)
}

// DefaultLocationProvider supplies the default observing site
type DefaultLocationProvider interface {
	DefaultLocation(ctx context.Context) (*entities.Location, error)
}

// DefaultROIProvider supplies the region statistics are computed over
type DefaultROIProvider interface {
	DefaultROI(ctx context.Context) (*entities.ROI, error)
}

// OpticsProvider supplies fallback focal length and f-number
type OpticsProvider interface {
	Optics(ctx context.Context) (metadata.Optics, error)
}

// Repositories is the subset of the store the provider reads
type Repositories struct {
	Configs   repository.ConfigRepository
	Cameras   repository.CameraRepository
	Observers repository.ObserverRepository
	Locations repository.LocationRepository
	ROIs      repository.ROIRepository
}

// FromStore picks the repositories out of a store
func FromStore(s *datastore.Store) Repositories {
	return Repositories{
		Configs:   s.Configs,
		Cameras:   s.Cameras,
		Observers: s.Observers,
		Locations: s.Locations,
		ROIs:      s.ROIs,
	}
}

// Provider implements every provider interface over the configs table.
// Optics values missing from the table fall back to the configured ones.
type Provider struct {
	repos    Repositories
	fallback metadata.Optics
}

// NewProvider creates a Provider. fallback is used for optics values that
// are not stored in the configs table.
func NewProvider(repos Repositories, fallback metadata.Optics) *Provider {
	return &Provider{repos: repos, fallback: fallback}
}

func (p *Provider) get(ctx context.Context, property string) (string, error) {
	v, err := p.repos.Configs.Get(ctx, Section, property)
	switch {
	case err == nil && v != "":
		return v, nil
	case err == nil, errors.Is(err, repository.ErrConfigNotFound):
		return "", missing(property, nil)
	default:
		return "", err
	}
}

func missing(property string, cause error) error {
	b := errors.New(ErrMissingDefault).
		Component("defaults").
		Category(errors.CategoryConfiguration).
		Context("property", property)
	if cause != nil {
		b = b.Context("cause", cause.Error())
	}
	return b.Build()
}

// resolve maps a dangling reference to ErrMissingDefault
func resolve[T any](v T, err error, property string, notFound error) (T, error) {
	if errors.Is(err, notFound) {
		return v, missing(property, err)
	}
	return v, err
}

func (p *Provider) DefaultCamera(ctx context.Context) (*entities.Camera, error) {
	model, err := p.get(ctx, KeyCamera)
	if err != nil {
		return nil, err
	}
	cam, err := p.repos.Cameras.LoadByNaturalKey(ctx, model)
	return resolve(cam, err, KeyCamera, repository.ErrCameraNotFound)
}

func (p *Provider) DefaultObserver(ctx context.Context) (*entities.Observer, error) {
	family, err := p.get(ctx, KeyObserverFamily)
	if err != nil {
		return nil, err
	}
	// a single-name observer has no surname
	surname, err := p.repos.Configs.Get(ctx, Section, KeyObserverSurname)
	if err != nil && !errors.Is(err, repository.ErrConfigNotFound) {
		return nil, err
	}
	obs, err := p.repos.Observers.Current(ctx, family, surname)
	return resolve(obs, err, KeyObserverFamily, repository.ErrObserverNotFound)
}

func (p *Provider) DefaultLocation(ctx context.Context) (*entities.Location, error) {
	site, err := p.get(ctx, KeySiteName)
	if err != nil {
		return nil, err
	}
	name, err := p.get(ctx, KeyLocation)
	if err != nil {
		return nil, err
	}
	loc, err := p.repos.Locations.LoadByNaturalKey(ctx, site, name)
	return resolve(loc, err, KeyLocation, repository.ErrLocationNotFound)
}

func (p *Provider) DefaultROI(ctx context.Context) (*entities.ROI, error) {
	display, err := p.get(ctx, KeyROI)
	if err != nil {
		return nil, err
	}
	rect, err := geometry.ParseDisplayName(display)
	if err != nil {
		return nil, missing(KeyROI, err)
	}
	roi, err := p.repos.ROIs.LoadByNaturalKey(ctx, rect)
	return resolve(roi, err, KeyROI, repository.ErrROINotFound)
}

// Optics never fails on unset values; it only reports store errors and
// unparsable stored numbers.
func (p *Provider) Optics(ctx context.Context) (metadata.Optics, error) {
	optics := p.fallback
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{KeyFocalLength, &optics.FocalLength},
		{KeyFNumber, &optics.FNumber},
	} {
		v, err := p.repos.Configs.Get(ctx, Section, f.key)
		if errors.Is(err, repository.ErrConfigNotFound) || (err == nil && v == "") {
			continue
		}
		if err != nil {
			return optics, err
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return optics, errors.New(err).
				Component("defaults").
				Category(errors.CategoryConfiguration).
				Context("property", f.key).
				Context("value", v).
				Build()
		}
		*f.dst = n
	}
	return optics, nil
}

// SetCamera makes model the default camera. The camera must exist.
func (p *Provider) SetCamera(ctx context.Context, model string) error {
	if _, err := p.repos.Cameras.Lookup(ctx, model); err != nil {
		return err
	}
	return p.repos.Configs.Set(ctx, Section, KeyCamera, model)
}

// SetObserver makes the current version of (familyName, surname) the default
func (p *Provider) SetObserver(ctx context.Context, familyName, surname string) error {
	if _, err := p.repos.Observers.Lookup(ctx, familyName, surname); err != nil {
		return err
	}
	if err := p.repos.Configs.Set(ctx, Section, KeyObserverFamily, familyName); err != nil {
		return err
	}
	if surname == "" {
		err := p.repos.Configs.Delete(ctx, Section, KeyObserverSurname)
		if errors.Is(err, repository.ErrConfigNotFound) {
			return nil
		}
		return err
	}
	return p.repos.Configs.Set(ctx, Section, KeyObserverSurname, surname)
}

func (p *Provider) SetLocation(ctx context.Context, siteName, location string) error {
	if _, err := p.repos.Locations.Lookup(ctx, siteName, location); err != nil {
		return err
	}
	if err := p.repos.Configs.Set(ctx, Section, KeySiteName, siteName); err != nil {
		return err
	}
	return p.repos.Configs.Set(ctx, Section, KeyLocation, location)
}

func (p *Provider) SetROI(ctx context.Context, rect geometry.Rect) error {
	if _, err := p.repos.ROIs.Lookup(ctx, rect); err != nil {
		return err
	}
	return p.repos.Configs.Set(ctx, Section, KeyROI, rect.Normalize().DisplayName())
}

// SetOptics stores fallback optics. Zero values are left untouched.
func (p *Provider) SetOptics(ctx context.Context, optics metadata.Optics) error {
	if optics.FocalLength > 0 {
		v := strconv.FormatFloat(optics.FocalLength, 'f', -1, 64)
		if err := p.repos.Configs.Set(ctx, Section, KeyFocalLength, v); err != nil {
			return err
		}
	}
	if optics.FNumber > 0 {
		v := strconv.FormatFloat(optics.FNumber, 'f', -1, 64)
		if err := p.repos.Configs.Set(ctx, Section, KeyFNumber, v); err != nil {
			return err
		}
	}
	return nil
}

// All returns every stored default, for display
func (p *Provider) All(ctx context.Context) (map[string]string, error) {
	return p.repos.Configs.List(ctx, Section)
}
