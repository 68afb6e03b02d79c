package tx

import "tessera/pkg/domain"

// AssetKey serializes ledger operations, deposits and distribution creation for an asset.
func AssetKey(id domain.AssetID) string {
	return "asset:" + id.String()
}

// DistributionKey serializes claims and batches for a distribution.
func DistributionKey(id domain.DistributionID) string {
	return "distribution:" + id.String()
}
