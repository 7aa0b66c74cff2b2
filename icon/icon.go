// Package icon renders the symbols shown by the command line and the playback view in the variant
// chosen with the icons.variant setting.
package icon

import (
	"slices"

	"github.com/anisan-cli/reelplay/key"
	"github.com/spf13/viper"
)

const (
	emoji   = "emoji"
	nerd    = "nerd"
	plain   = "plain"
	kaomoji = "kaomoji"
	squares = "squares"
)

// AvailableVariants returns every supported variant.
func AvailableVariants() []string {
	return []string{emoji, nerd, plain, kaomoji, squares}
}

// Variant returns the configured variant. Unknown values fall back to plain.
func Variant() string {
	variant := viper.GetString(key.IconsVariant)
	if !slices.Contains(AvailableVariants(), variant) {
		return plain
	}
	return variant
}

type iconDef struct {
	emoji   string
	nerd    string
	plain   string
	kaomoji string
	squares string
}

func (d *iconDef) get(variant string) string {
	switch variant {
	case emoji:
		return d.emoji
	case nerd:
		return d.nerd
	case kaomoji:
		return d.kaomoji
	case squares:
		return d.squares
	default:
		return d.plain
	}
}

// Get renders i in the configured variant.
func Get(i Icon) string {
	return icons[i].get(Variant())
}
