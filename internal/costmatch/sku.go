package costmatch

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

const autoSKUPrefix = "AUTO-"

// AutoSKU derives a stable SKU for products known only by name.
func AutoSKU(name string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(name)))
	return autoSKUPrefix + strings.ToUpper(hex.EncodeToString(sum[:])[:8])
}

// IsAutoSKU reports whether sku was generated by AutoSKU.
func IsAutoSKU(sku string) bool {
	return strings.HasPrefix(sku, autoSKUPrefix)
}
