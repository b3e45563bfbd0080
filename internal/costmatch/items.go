package costmatch

import (
	"regexp"
	"strconv"
	"strings"
)

// ItemSeparator joins item tokens in an order's item summary.
const ItemSeparator = " | "

var itemPattern = regexp.MustCompile(`^(.+?)\s+x(\d+)$`)

// Item is one "name xQty" token of an item summary.
type Item struct {
	Name     string
	Quantity int
}

// ParseItems splits an item summary into its tokens. A token without a
// trailing " x<qty>" counts once under its full text.
func ParseItems(summary string) []Item {
	var items []Item
	for _, token := range strings.Split(summary, ItemSeparator) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		item := Item{Name: token, Quantity: 1}
		if m := itemPattern.FindStringSubmatch(token); m != nil {
			if qty, err := strconv.Atoi(m[2]); err == nil && qty > 0 {
				item = Item{Name: strings.TrimSpace(m[1]), Quantity: qty}
			}
		}
		items = append(items, item)
	}
	return items
}
