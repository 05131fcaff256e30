package protocol

// Wire headers shared with Page Sources.
const (
	HeaderMarker           = "X-Inertia"
	HeaderVersion          = "X-Inertia-Version"
	HeaderPartialData      = "X-Inertia-Partial-Data"
	HeaderPartialExcept    = "X-Inertia-Partial-Except"
	HeaderPartialComponent = "X-Inertia-Partial-Component"
	HeaderErrorBag         = "X-Inertia-Error-Bag"
	HeaderLocation         = "X-Inertia-Location"
	HeaderRequestedWith    = "X-Requested-With"
)

const (
	markerValue      = "true"
	requestedWith    = "XMLHttpRequest"
	acceptValue      = "text/html, application/xhtml+xml, application/json"
	contentTypeJSON  = "application/json"
	defaultRootID    = "app"
	pageDataAttr     = "data-page"
	maxResponseBytes = 32 << 20
)
