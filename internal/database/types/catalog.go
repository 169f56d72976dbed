package types

import (
	"slices"

	"github.com/akguild/guildkeeper/internal/database/types/enum"
)

// MaxWeapons is the number of weapons a profile may hold.
const MaxWeapons = 2

// weaponCatalog lists the weapons each build may equip.
var weaponCatalog = map[enum.BuildType][]string{
	enum.BuildTypeDPS: {
		"Strategic Sword", "Heaven Spear", "Nameless Sword", "Nameless Spear",
		"Twinblade", "Mortal Rope", "Vernal Umbrella", "Inkwell Fan",
	},
	enum.BuildTypeTank:    {"Thunder Blade", "StormBreaker Spear"},
	enum.BuildTypeSupport: {"Vernal Umbrella", "Inkwell Fan", "Soulshade Umbrella"},
	enum.BuildTypeHealer:  {"Panacea Fan", "Soulshade Umbrella"},
}

// WeaponsForBuild returns the weapons available to a build.
func WeaponsForBuild(build enum.BuildType) []string {
	return slices.Clone(weaponCatalog[build])
}

// IsWeaponAllowed reports whether the weapon belongs to the build's catalog.
func IsWeaponAllowed(build enum.BuildType, weapon string) bool {
	return slices.Contains(weaponCatalog[build], weapon)
}
