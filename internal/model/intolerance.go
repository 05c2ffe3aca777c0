package model

import "strings"

// Intolerance is a dietary restriction a user can declare.
type Intolerance int

const (
	IntoleranceDairy Intolerance = iota
	IntoleranceEgg
	IntoleranceGluten
	IntoleranceGrain
	IntolerancePeanut
	IntoleranceSeafood
	IntoleranceSesame
	IntoleranceShellfish
	IntoleranceSoy
	IntoleranceSulfite
	IntoleranceTreeNut
	IntoleranceWheat
)

var intoleranceNames = [...]string{
	"Dairy", "Egg", "Gluten", "Grain", "Peanut", "Seafood",
	"Sesame", "Shellfish", "Soy", "Sulfite", "Tree Nut", "Wheat",
}

func (i Intolerance) Valid() bool {
	return i >= IntoleranceDairy && int(i) < len(intoleranceNames)
}

// DisplayName is the human label, also the value the recipe provider expects
// in its intolerances filter.
func (i Intolerance) DisplayName() string {
	if !i.Valid() {
		return ""
	}
	return intoleranceNames[i]
}

func (i Intolerance) String() string { return i.DisplayName() }

// IntoleranceJSON is the wire form of an intolerance.
type IntoleranceJSON struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (i Intolerance) JSON() IntoleranceJSON {
	return IntoleranceJSON{ID: int(i), Name: i.DisplayName()}
}

// IntoleranceFromID returns the intolerance with the given numeric id.
func IntoleranceFromID(id int) (Intolerance, bool) {
	i := Intolerance(id)
	return i, i.Valid()
}

// AllIntolerances lists every intolerance in id order.
func AllIntolerances() []Intolerance {
	out := make([]Intolerance, len(intoleranceNames))
	for i := range intoleranceNames {
		out[i] = Intolerance(i)
	}
	return out
}

// JoinIntolerances formats a list the way the provider's search filter takes it.
func JoinIntolerances(list []Intolerance) string {
	names := make([]string, 0, len(list))
	for _, i := range list {
		if i.Valid() {
			names = append(names, strings.ToLower(i.DisplayName()))
		}
	}
	return strings.Join(names, ",")
}
