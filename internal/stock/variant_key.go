package stock

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"commerce_backend/internal/models"
)

const (
	pairSeparator = ","
	partSeparator = ":"
	nameSeparator = " / "
)

// EncodeVariantKey turns a selection into its canonical key: every (group, option) pair
// becomes "group:option", the flattened list is sorted lexicographically and joined by ",".
// Map iteration order and the order of options inside a group never affect the result.
func EncodeVariantKey(selected models.SelectedOptions) string {
	pairs := make([]string, 0, len(selected))
	for groupID, optionIDs := range selected {
		for _, optionID := range optionIDs {
			pairs = append(pairs, strconv.FormatInt(groupID, 10)+partSeparator+strconv.FormatInt(optionID, 10))
		}
	}
	sort.Strings(pairs)
	return strings.Join(dedupe(pairs), pairSeparator)
}

// dedupe drops adjacent duplicates from a sorted slice.
func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i > 0 && s == sorted[i-1] {
			continue
		}
		out = append(out, s)
	}
	return out
}

// DecodeVariantKey parses a canonical key back into a selection.
func DecodeVariantKey(key string) (models.SelectedOptions, error) {
	selected := models.SelectedOptions{}
	if strings.TrimSpace(key) == "" {
		return selected, nil
	}
	for _, pair := range strings.Split(key, pairSeparator) {
		parts := strings.Split(pair, partSeparator)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed variant key segment %q", pair)
		}
		groupID, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed group id in %q: %w", pair, err)
		}
		optionID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed option id in %q: %w", pair, err)
		}
		selected[groupID] = append(selected[groupID], optionID)
	}
	return selected, nil
}

// VariantName builds the display name for a key from the item's groups, in group-position
// order and option-position order within a group. Unknown IDs are skipped.
func VariantName(item *models.CatalogItem, key string) (string, error) {
	selected, err := DecodeVariantKey(key)
	if err != nil {
		return "", err
	}
	groups := make([]models.OptionGroup, len(item.OptionGroups))
	copy(groups, item.OptionGroups)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Position < groups[j].Position })

	var names []string
	for _, g := range groups {
		chosen := selected[g.ID]
		if len(chosen) == 0 {
			continue
		}
		opts := make([]models.Option, len(g.Options))
		copy(opts, g.Options)
		sort.SliceStable(opts, func(i, j int) bool { return opts[i].Position < opts[j].Position })
		for _, o := range opts {
			if containsID(chosen, o.ID) {
				names = append(names, o.Name)
			}
		}
	}
	return strings.Join(names, nameSeparator), nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
