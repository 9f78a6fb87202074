package weather

// ServiceArea is an inclusive latitude/longitude bounding box.
type ServiceArea struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
}

// Philippines is the area the upstream provider is queried for.
var Philippines = ServiceArea{
	MinLatitude:  4.0,
	MaxLatitude:  21.0,
	MinLongitude: 116.0,
	MaxLongitude: 127.0,
}

const (
	inScopeMessage    = "Location is within the Philippines service area"
	outOfScopeMessage = "Location is outside the Philippines service area; showing estimated climate data"
)

// Contains reports whether c lies inside the box, edges included.
func (a ServiceArea) Contains(c Coordinate) bool {
	return c.Latitude >= a.MinLatitude && c.Latitude <= a.MaxLatitude &&
		c.Longitude >= a.MinLongitude && c.Longitude <= a.MaxLongitude
}

// IsInScope reports whether c is inside the Philippines service area.
func IsInScope(c Coordinate) bool {
	return Philippines.Contains(c)
}

func scopeFor(inScope bool) Scope {
	if inScope {
		return Scope{WithinServiceArea: true, Message: inScopeMessage}
	}
	return Scope{WithinServiceArea: false, Message: outOfScopeMessage}
}
