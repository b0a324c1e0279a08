// Package loader registers the cache drivers via blank imports.
//
//	import _ "github.com/MahdiBaghbani/confsync-go/internal/platform/cache/loader"
package loader

import (
	_ "github.com/MahdiBaghbani/confsync-go/internal/platform/cache/memory"
	_ "github.com/MahdiBaghbani/confsync-go/internal/platform/cache/redis"
)
