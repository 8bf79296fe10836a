package model

// Dimension names one scoring axis.
type Dimension string

// Scoring dimensions in canonical order.
const (
	DimVenueQuality        Dimension = "venue_quality"
	DimOrganizerReputation Dimension = "organizer_reputation"
	DimPerformerLineup     Dimension = "performer_lineup"
	DimLogisticsEase       Dimension = "logistics_ease"
	DimReadiness           Dimension = "readiness"
)

// AllDimensions lists every dimension in canonical order.
var AllDimensions = []Dimension{
	DimVenueQuality,
	DimOrganizerReputation,
	DimPerformerLineup,
	DimLogisticsEase,
	DimReadiness,
}

// Dimensions holds raw ratings. A nil entry means the rating is unavailable.
type Dimensions struct {
	VenueQuality        *int
	OrganizerReputation *int
	PerformerLineup     *int
	LogisticsEase       *int
	Readiness           *int
}

// Get returns the rating for d.
func (d Dimensions) Get(dim Dimension) *int {
	switch dim {
	case DimVenueQuality:
		return d.VenueQuality
	case DimOrganizerReputation:
		return d.OrganizerReputation
	case DimPerformerLineup:
		return d.PerformerLineup
	case DimLogisticsEase:
		return d.LogisticsEase
	case DimReadiness:
		return d.Readiness
	}
	return nil
}

// Set stores v for dim. Unknown dimensions are ignored.
func (d *Dimensions) Set(dim Dimension, v *int) {
	switch dim {
	case DimVenueQuality:
		d.VenueQuality = v
	case DimOrganizerReputation:
		d.OrganizerReputation = v
	case DimPerformerLineup:
		d.PerformerLineup = v
	case DimLogisticsEase:
		d.LogisticsEase = v
	case DimReadiness:
		d.Readiness = v
	}
}

// EventScore is the composed score of one event.
type EventScore struct {
	GUID                string
	VenueQuality        int
	OrganizerReputation int
	PerformerLineup     int
	LogisticsEase       int
	Readiness           int
	Composite           int
	Unavailable         []Dimension
}

// Value returns the scored value for dim.
func (s EventScore) Value(dim Dimension) int {
	switch dim {
	case DimVenueQuality:
		return s.VenueQuality
	case DimOrganizerReputation:
		return s.OrganizerReputation
	case DimPerformerLineup:
		return s.PerformerLineup
	case DimLogisticsEase:
		return s.LogisticsEase
	case DimReadiness:
		return s.Readiness
	}
	return 0
}

// IntPtr is a small helper for building Dimensions literals.
func IntPtr(v int) *int { return &v }
