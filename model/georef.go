package model

import (
	"math"
	"sync/atomic"
)

// metersPerDegreeLat is the equirectangular approximation constant used
// for local-meter <-> lat/lng conversion near the reference point.
const metersPerDegreeLat = 111320.0

// GeoReference converts between the engine's local (x east, y north)
// meter frame and WGS-84 lat/lng around a fixed origin. It is immutable
// once constructed, so reads need no synchronization.
type GeoReference struct {
	Origin GeoPoint

	cosLat float64
}

// NewGeoReference builds a reference frame centered on the given origin.
func NewGeoReference(lat, lng, alt float64) *GeoReference {
	return &GeoReference{
		Origin: GeoPoint{Lat: lat, Lng: lng, Alt: alt},
		cosLat: math.Cos(lat * math.Pi / 180),
	}
}

// ToGeo converts a local position to lat/lng/alt.
func (r *GeoReference) ToGeo(p Vec2) GeoPoint {
	return GeoPoint{
		Lat: r.Origin.Lat + p.Y/metersPerDegreeLat,
		Lng: r.Origin.Lng + p.X/(metersPerDegreeLat*r.cosLat),
		Alt: r.Origin.Alt,
	}
}

// ToLocal converts lat/lng back to local meters.
func (r *GeoReference) ToLocal(g GeoPoint) Vec2 {
	return Vec2{
		X: (g.Lng - r.Origin.Lng) * metersPerDegreeLat * r.cosLat,
		Y: (g.Lat - r.Origin.Lat) * metersPerDegreeLat,
	}
}

var geoRef atomic.Pointer[GeoReference]

// InitReference installs the process-wide reference point. The first call
// wins; later calls are ignored and return the already-installed frame.
// Reads via Reference are lock-free after this returns.
func InitReference(lat, lng, alt float64) *GeoReference {
	r := NewGeoReference(lat, lng, alt)
	if geoRef.CompareAndSwap(nil, r) {
		return r
	}
	return geoRef.Load()
}

// Reference returns the installed reference frame, or nil before
// InitReference has been called (bridges treat nil as "no geo available"
// and omit lat/lng from their output).
func Reference() *GeoReference {
	return geoRef.Load()
}
