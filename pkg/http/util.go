package http

import (
	"time"

	xutil "LutherTerminal/pkg/util"
)

// ParseTimeDefault parses a query time (RFC3339, date or unix seconds) or returns def.
func ParseTimeDefault(s string, def time.Time) time.Time { return xutil.ParseTimeDefault(s, def) }
