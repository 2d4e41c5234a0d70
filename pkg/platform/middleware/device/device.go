// Package device derives capture-device context from a User-Agent header.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Device types reported by FromUserAgent.
const (
	TypeMobile  = "mobile"
	TypeDesktop = "desktop"
	TypeBot     = "bot"
)

// Info is the device context recorded with templates and audit entries.
type Info struct {
	Type  string
	Model string
	OS    string
}

// FromUserAgent parses ua. An empty header yields the zero Info.
func FromUserAgent(ua string) Info {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return Info{}
	}
	parsed := useragent.New(ua)

	info := Info{
		Model: parsed.Model(),
		OS:    parsed.OS(),
	}
	switch {
	case parsed.Bot():
		info.Type = TypeBot
	case parsed.Mobile():
		info.Type = TypeMobile
	default:
		info.Type = TypeDesktop
	}
	if info.Model == "" {
		info.Model = parsed.Platform()
	}
	return info
}

// IsZero reports whether nothing was derived.
func (i Info) IsZero() bool {
	return i == Info{}
}
