package page

// Markup of the listing site. These are owned by the site and break when it
// changes its templates, so they live in one place.
const (
	ListingContainer = "main.listing-items"
	ListingCard      = "article.item"
	ListingLink      = "a.item-link"
	ListingPriceRow  = "div.price-row"
	ListingIDAttr    = "data-element-id"

	DetailContainer = "main.detail-container"
	DetailHeader    = "#headerMap li.header-map-list"
	DetailTitle     = "span.main-info__title-main"
	DetailSubtitle  = "span.main-info__title-minor"
	DetailAnchor    = "div.info-features"
)

// Classes and ids of the nodes this program injects.
const (
	ListingBadgeClass = "idealista-distance-info"
	DetailBadgeClass  = "idealista-distance-detail"
	StyleID           = "idealista-distance-styles"
)
