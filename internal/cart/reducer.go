package cart

import "strings"

// ActionType names a reducer action.
type ActionType string

const (
	ActionAdd    ActionType = "ADD"
	ActionInc    ActionType = "INC"
	ActionDec    ActionType = "DEC"
	ActionRemove ActionType = "REMOVE"
	ActionClear  ActionType = "CLEAR"
)

// Line is one (product, variant) entry of a client-side cart.
type Line struct {
	ProductRef string `json:"product_ref"`
	Variant    string `json:"variant,omitempty"`
	Quantity   int    `json:"quantity"`
}

// State is the client-side cart the reducer operates on.
type State struct {
	Items []Line `json:"items"`
}

// Action mutates a State through Reduce.
type Action struct {
	Type       ActionType `json:"type"`
	ProductRef string     `json:"product_ref,omitempty"`
	Variant    string     `json:"variant,omitempty"`
	Quantity   int        `json:"quantity,omitempty"`
}

// Reduce applies action to state and returns the next state. It never
// mutates its input, so the same inputs always yield the same output.
// Unknown actions return an unchanged copy.
func Reduce(state State, action Action) State {
	items := make([]Line, 0, len(state.Items)+1)
	items = append(items, state.Items...)

	ref := strings.TrimSpace(action.ProductRef)
	variant := strings.TrimSpace(action.Variant)
	idx := -1
	for i, line := range items {
		if line.ProductRef == ref && line.Variant == variant {
			idx = i
			break
		}
	}

	switch ActionType(strings.ToUpper(string(action.Type))) {
	case ActionAdd:
		if ref == "" {
			break
		}
		qty := action.Quantity
		if qty <= 0 {
			qty = 1
		}
		if idx >= 0 {
			items[idx].Quantity += qty
		} else {
			items = append(items, Line{ProductRef: ref, Variant: variant, Quantity: qty})
		}
	case ActionInc:
		if idx >= 0 {
			items[idx].Quantity++
		}
	case ActionDec:
		if idx < 0 {
			break
		}
		if items[idx].Quantity <= 1 {
			items = removeAt(items, idx)
		} else {
			items[idx].Quantity--
		}
	case ActionRemove:
		if idx >= 0 {
			items = removeAt(items, idx)
		}
	case ActionClear:
		items = items[:0]
	}
	return State{Items: items}
}

// ReduceAll folds actions over state from left to right.
func ReduceAll(state State, actions []Action) State {
	for _, action := range actions {
		state = Reduce(state, action)
	}
	return state
}

func removeAt(items []Line, idx int) []Line {
	return append(items[:idx], items[idx+1:]...)
}
