// Package template renders commerce email templates and stores saved designs.
//
// Rendering is pure: the same Input, Variant and RenderContext always produce
// the same HTML. Nothing in this package keeps state between renders, so the
// functions may be called concurrently from a live preview.
package template

import (
	"time"
)

// Variant selects one of the fixed visual layouts
type Variant string

const (
	VariantModern      Variant = "modern"
	VariantMinimal     Variant = "minimal"
	VariantClassic     Variant = "classic"
	VariantPromotional Variant = "promotional"
)

// DefaultVariant is used for empty or unrecognized variant names
const DefaultVariant = VariantModern

// Variants returns all supported variants in display order
func Variants() []Variant {
	return []Variant{VariantModern, VariantMinimal, VariantClassic, VariantPromotional}
}

// ParseVariant maps a name to a Variant, falling back to DefaultVariant
func ParseVariant(s string) Variant {
	v := Variant(s)
	if _, ok := layouts[v]; ok {
		return v
	}
	return DefaultVariant
}

// Valid reports whether v is one of the known variants
func (v Variant) Valid() bool {
	_, ok := layouts[v]
	return ok
}

// Input holds the content and style fields of an email
type Input struct {
	Subject          string `json:"subject"`
	HeroTitle        string `json:"hero_title"`
	Subtitle         string `json:"subtitle,omitempty"`
	BodyText         string `json:"body_text"`
	LogoURL          string `json:"logo_url,omitempty"`
	PrimaryColor     string `json:"primary_color"`
	BackgroundColor  string `json:"background_color"`
	ShowCallToAction bool   `json:"show_call_to_action"`
	CTAText          string `json:"cta_text,omitempty"`
	CTAURL           string `json:"cta_url,omitempty"`
}

// Template is a saved email design
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	Variant     Variant   `json:"variant"`
	Input       Input     `json:"input"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListFilter contains filters for listing templates
type ListFilter struct {
	Limit  int
	Offset int
	Search string
	Kind   string
}

// Stats contains template statistics
type Stats struct {
	Total  int64            `json:"total"`
	ByKind map[string]int64 `json:"by_kind,omitempty"`
}
