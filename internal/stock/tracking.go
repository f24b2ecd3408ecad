package stock

import (
	"fmt"
	"sort"

	"commerce_backend/internal/models"
)

// ModeKind is the granularity at which an item's stock is accounted.
type ModeKind int

const (
	Untracked ModeKind = iota
	ItemLevel
	OptionLevel
	VariantLevel
)

func (k ModeKind) String() string {
	switch k {
	case ItemLevel:
		return "item"
	case OptionLevel:
		return "option"
	case VariantLevel:
		return "variant"
	default:
		return "untracked"
	}
}

// ParseModeKind maps the API spelling back to a ModeKind.
func ParseModeKind(s string) (ModeKind, error) {
	switch s {
	case "untracked", "":
		return Untracked, nil
	case "item":
		return ItemLevel, nil
	case "option":
		return OptionLevel, nil
	case "variant":
		return VariantLevel, nil
	}
	return Untracked, fmt.Errorf("unknown tracking mode %q", s)
}

// TrackingMode is computed once per item. Group is set only for OptionLevel.
type TrackingMode struct {
	Kind  ModeKind
	Group *models.OptionGroup
}

// ResolveMode picks exactly one mode: variants win, then the tracked option group,
// then item-level tracking, else untracked.
func ResolveMode(item *models.CatalogItem) TrackingMode {
	if item.TrackVariants {
		return TrackingMode{Kind: VariantLevel}
	}
	for i := range item.OptionGroups {
		if item.OptionGroups[i].EnableInventoryTracking {
			return TrackingMode{Kind: OptionLevel, Group: &item.OptionGroups[i]}
		}
	}
	if item.TrackInventory {
		return TrackingMode{Kind: ItemLevel}
	}
	return TrackingMode{Kind: Untracked}
}

// Target is one ledger entity a line item mutates. Variant targets carry the key;
// their row ID is looked up by the caller.
type Target struct {
	Ref        models.EntityRef
	Name       string
	VariantKey string
}

// ResolveTargets returns the entities that receive ledger mutations for a selection.
// Untracked items resolve to no targets.
func ResolveTargets(item *models.CatalogItem, selected models.SelectedOptions) (TrackingMode, []Target, error) {
	mode := ResolveMode(item)
	switch mode.Kind {
	case ItemLevel:
		return mode, []Target{{Ref: item.Ref(), Name: item.Name}}, nil

	case OptionLevel:
		chosen := selected[mode.Group.ID]
		if len(chosen) == 0 {
			return mode, nil, &MissingRequiredSelectionError{ItemName: item.Name, GroupID: mode.Group.ID, GroupName: mode.Group.Name}
		}
		targets := make([]Target, 0, len(chosen))
		for _, optionID := range chosen {
			opt := mode.Group.FindOption(optionID)
			if opt == nil {
				return mode, nil, &InvalidSelectionError{ItemName: item.Name, Detail: fmt.Sprintf("option %d is not part of %q", optionID, mode.Group.Name)}
			}
			if !opt.Available {
				return mode, nil, &UnavailableOptionError{ItemName: item.Name, OptionID: opt.ID, OptionName: opt.Name}
			}
			targets = append(targets, Target{Ref: opt.Ref(), Name: item.Name + " (" + opt.Name + ")"})
		}
		return mode, targets, nil

	case VariantLevel:
		if len(selected) == 0 && len(item.OptionGroups) > 0 {
			g := firstGroup(item)
			return mode, nil, &MissingRequiredSelectionError{ItemName: item.Name, GroupID: g.ID, GroupName: g.Name}
		}
		for _, g := range item.OptionGroups {
			if g.Required && len(selected[g.ID]) == 0 {
				return mode, nil, &MissingRequiredSelectionError{ItemName: item.Name, GroupID: g.ID, GroupName: g.Name}
			}
		}
		key := EncodeVariantKey(selected)
		name, err := VariantName(item, key)
		if err != nil {
			return mode, nil, err
		}
		return mode, []Target{{Ref: models.EntityRef{Type: models.EntityVariant}, Name: item.Name + " (" + name + ")", VariantKey: key}}, nil
	}
	return mode, nil, nil
}

func firstGroup(item *models.CatalogItem) models.OptionGroup {
	groups := make([]models.OptionGroup, len(item.OptionGroups))
	copy(groups, item.OptionGroups)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Position < groups[j].Position })
	return groups[0]
}

// ValidateSelection checks a selection against the item's groups regardless of tracking:
// every group and option must belong to the item, options must be available, and
// min/max select bounds hold. Returns the unit price including option surcharges.
func ValidateSelection(item *models.CatalogItem, selected models.SelectedOptions) (int64, error) {
	price := item.PriceCents
	for groupID, optionIDs := range selected {
		g := item.FindGroup(groupID)
		if g == nil {
			return 0, &InvalidSelectionError{ItemName: item.Name, Detail: fmt.Sprintf("option group %d does not belong to this item", groupID)}
		}
		if g.MaxSelect > 0 && len(optionIDs) > g.MaxSelect {
			return 0, &InvalidSelectionError{ItemName: item.Name, Detail: fmt.Sprintf("at most %d choice(s) allowed for %q", g.MaxSelect, g.Name)}
		}
		seen := make(map[int64]bool, len(optionIDs))
		for _, optionID := range optionIDs {
			if seen[optionID] {
				return 0, &InvalidSelectionError{ItemName: item.Name, Detail: fmt.Sprintf("option %d selected twice", optionID)}
			}
			seen[optionID] = true
			opt := g.FindOption(optionID)
			if opt == nil {
				return 0, &InvalidSelectionError{ItemName: item.Name, Detail: fmt.Sprintf("option %d is not part of %q", optionID, g.Name)}
			}
			if !opt.Available {
				return 0, &UnavailableOptionError{ItemName: item.Name, OptionID: opt.ID, OptionName: opt.Name}
			}
			price += opt.AdditionalPriceCents
		}
	}
	for _, g := range item.OptionGroups {
		n := len(selected[g.ID])
		if n == 0 && (g.Required || g.MinSelect > 0) {
			return 0, &MissingRequiredSelectionError{ItemName: item.Name, GroupID: g.ID, GroupName: g.Name}
		}
		if n > 0 && n < g.MinSelect {
			return 0, &InvalidSelectionError{ItemName: item.Name, Detail: fmt.Sprintf("at least %d choice(s) required for %q", g.MinSelect, g.Name)}
		}
	}
	return price, nil
}
