// Package metadata holds the default metric catalog shipped with the binary.
package metadata

import "embed"

// CatalogDir is the directory inside Catalog that holds metric definitions.
const CatalogDir = "metrics"

// Catalog contains the embedded metric definition files.
//
//go:embed metrics/*.yaml
var Catalog embed.FS
