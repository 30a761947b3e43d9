package idhash

import (
	"crypto/md5"
	"fmt"
)

// SellInstanceID computes the instance id of a sell listing.
// Formula: <appid>_<assetid>
// The asset id identifies one concrete copy of an item, so every sell
// listing maps to its own store entry.
func SellInstanceID(appID uint32, assetID uint64) string {
	return fmt.Sprintf("%d_%d", appID, assetID)
}

// BuyInstanceID computes the instance id of a buy listing.
// Formula: <appid>_<steamid>_<md5hex(item)>
// Buy orders carry no asset, so all orders of one account for one queried
// item collapse onto the same id.
func BuyInstanceID(appID uint32, steamID, item string) string {
	sum := md5.Sum([]byte(item))
	return fmt.Sprintf("%d_%s_%x", appID, steamID, sum)
}
