package entities

// Source ids reported by the provider adapters. The vendor directory is the
// one quote-based source; every other adapter returns priced listings.
const (
	SourceEbay            = "ebay"
	SourceKroger          = "kroger"
	SourceTicketmaster    = "ticketmaster"
	SourceRainforest      = "rainforest"
	SourceMockShop        = "mockshop"
	SourceVendorDirectory = "vendordir"
)
