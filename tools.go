//go:build tools

// Package tools tracks code generators used via go generate so that
// go.mod keeps them pinned.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
