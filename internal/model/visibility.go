package model

// ProfileVisibility is a bitmask of the profile sections a user shares.
// The zero value hides everything.
type ProfileVisibility uint8

const (
	VisibilityName             ProfileVisibility = 0x01
	VisibilityCreationDate     ProfileVisibility = 0x02
	VisibilityIntolerances     ProfileVisibility = 0x04
	VisibilitySavedRecipes     ProfileVisibility = 0x08
	VisibilitySavedIngredients ProfileVisibility = 0x10
	VisibilityFriends          ProfileVisibility = 0x20
)

// visibilityFlags is the stable order used by Flags and ParseVisibilityFlag.
var visibilityFlags = []struct {
	name string
	flag ProfileVisibility
}{
	{"name", VisibilityName},
	{"creation_date", VisibilityCreationDate},
	{"intolerances", VisibilityIntolerances},
	{"saved_recipes", VisibilitySavedRecipes},
	{"saved_ingredients", VisibilitySavedIngredients},
	{"friends", VisibilityFriends},
}

func VisibilityAll() ProfileVisibility  { return 0xFF }
func VisibilityNone() ProfileVisibility { return 0 }

// Has reports whether every bit in flag is set.
func (v ProfileVisibility) Has(flag ProfileVisibility) bool {
	return v&flag == flag
}

func (v ProfileVisibility) Enable(flag ProfileVisibility) ProfileVisibility {
	return v | flag
}

func (v ProfileVisibility) Disable(flag ProfileVisibility) ProfileVisibility {
	return v &^ flag
}

// Flags maps each named section to whether it is visible.
func (v ProfileVisibility) Flags() map[string]bool {
	out := make(map[string]bool, len(visibilityFlags))
	for _, f := range visibilityFlags {
		out[f.name] = v.Has(f.flag)
	}
	return out
}

// ParseVisibilityFlag looks up a section by its lower-case name.
func ParseVisibilityFlag(name string) (ProfileVisibility, bool) {
	for _, f := range visibilityFlags {
		if f.name == name {
			return f.flag, true
		}
	}
	return 0, false
}
