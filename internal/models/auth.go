package models

import (
	"strings"
	"time"
)

// StorageState is the persisted authentication snapshot for the platform.
// The layout matches the storageState.json files written by earlier releases,
// so a blob captured by one version can seed the next.
type StorageState struct {
	Cookies []StoredCookie  `json:"cookies"`
	Origins []OriginStorage `json:"origins"`
}

// StoredCookie is one browser cookie. Expires is unix seconds, -1 for session cookies.
type StoredCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"` // "Strict", "Lax" or "None"
}

// OriginStorage holds the localStorage entries captured for one origin
type OriginStorage struct {
	Origin       string             `json:"origin"`
	LocalStorage []LocalStorageItem `json:"localStorage"`
}

type LocalStorageItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// IsSession reports whether the cookie lives only for the browser session
func (c StoredCookie) IsSession() bool {
	return c.Expires <= 0
}

// ExpiresAt returns the cookie expiry, or the zero time for session cookies
func (c StoredCookie) ExpiresAt() time.Time {
	if c.IsSession() {
		return time.Time{}
	}
	sec := int64(c.Expires)
	nsec := int64((c.Expires - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// NormalizedSameSite maps the stored same-site value onto the CDP spelling ("Strict", "Lax", "None")
func (c StoredCookie) NormalizedSameSite() string {
	switch strings.ToLower(c.SameSite) {
	case "strict":
		return "Strict"
	case "lax":
		return "Lax"
	case "none":
		return "None"
	default:
		return ""
	}
}

// IsEmpty reports whether the snapshot carries no cookies and no storage
func (s *StorageState) IsEmpty() bool {
	if s == nil {
		return true
	}
	if len(s.Cookies) > 0 {
		return false
	}
	for _, o := range s.Origins {
		if len(o.LocalStorage) > 0 {
			return false
		}
	}
	return true
}
