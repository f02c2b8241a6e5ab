package data

import "embed"

var (
	//go:embed formguard.yaml
	DefaultConfig embed.FS
)
