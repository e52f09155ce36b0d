package model

// ProviderKind distinguishes the two concrete provider entities that share one
// booking timeline.
type ProviderKind string

const (
	ProviderProfessional ProviderKind = "professional"
	ProviderPlace        ProviderKind = "place"
)

func (k ProviderKind) Valid() bool {
	return k == ProviderProfessional || k == ProviderPlace
}

// ProviderRef is a tagged reference to a provider owned by the directory
// subsystem. The engine never dereferences it beyond identity.
type ProviderRef struct {
	Kind ProviderKind
	ID   string
}

func (r ProviderRef) IsZero() bool {
	return r.Kind == "" && r.ID == ""
}

// Provider is the directory's view of a provider, as much of it as the engine
// needs: identity plus the user account that owns it (for self-booking checks).
type Provider struct {
	Ref         ProviderRef
	DisplayName string
	OwnerUserID string
	Active      bool
}

// ServiceKind is the concrete kind of a bookable service instance.
type ServiceKind string

const (
	ServicePlaceOffered        ServiceKind = "place_service"
	ServiceProfessionalOffered ServiceKind = "professional_service"
	ServiceCustom              ServiceKind = "custom_service"
)

func (k ServiceKind) Valid() bool {
	switch k {
	case ServicePlaceOffered, ServiceProfessionalOffered, ServiceCustom:
		return true
	}
	return false
}

// ServiceRef is a tagged reference to a service instance, resolved through the
// directory into a provider plus a canonical duration.
type ServiceRef struct {
	Kind ServiceKind
	ID   string
}
