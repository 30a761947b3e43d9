package domain

// AppID is the marketplace application scope used for every query.
const AppID uint32 = 440

// ItemIdentity is an item as requested from the snapshot feed.
// Defindex is zero until recovered from a response.
type ItemIdentity struct {
	Name     string // e.g. "Strange Rocket Launcher"
	Defindex uint32 // item-type identifier
}

// ItemDefinition maps an item name to its defindex.
type ItemDefinition struct {
	Name     string
	Defindex uint32
}
