package domain

import "fmt"

// Catalog is the static set of sellable items. Identity uniqueness is enforced
// at construction; lookups after that never mutate it.
type Catalog struct {
	items map[ItemID]Item
	order []ItemID
}

func NewCatalog(items []Item) (*Catalog, error) {
	c := &Catalog{
		items: make(map[ItemID]Item, len(items)),
		order: make([]ItemID, 0, len(items)),
	}
	for _, it := range items {
		if _, exists := c.items[it.ID]; exists {
			return nil, fmt.Errorf("duplicate catalog item %s", it.ID)
		}
		c.items[it.ID] = it
		c.order = append(c.order, it.ID)
	}
	return c, nil
}

// Lookup returns the item for id or ErrUnknownItem.
func (c *Catalog) Lookup(id ItemID) (Item, error) {
	it, ok := c.items[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	return it, nil
}

func (c *Catalog) Has(id ItemID) bool {
	_, ok := c.items[id]
	return ok
}

// Items returns all entries in load order.
func (c *Catalog) Items() []Item {
	out := make([]Item, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.order)
}

// DefaultCatalog builds the stock storefront assortment: every flavor is sold
// in a 30 ml and a 10 ml bottle.
func DefaultCatalog() *Catalog {
	flavors := []struct {
		key, name, tag, desc string
	}{
		{"cherry_menthol", "Cherry Menthol", "", "Juicy cherry with a cool menthol finish."},
		{"watermelon_menthol", "Watermelon Menthol", "", "Sweet watermelon plus a menthol chill. Fresh and bright."},
		{"banana", "Banana", "", "Soft sweet banana, mild and easy for every day."},
		{"mint", "Mint", "", "Pure mint frost, as refreshing as it gets."},
		{"kiwi", "Kiwi", "", "Sweet-and-sour kiwi with a light fruity aftertaste."},
		{"blue_raspberry", "Blue Raspberry", "new", "Bright sweet raspberry with a gentle tang."},
	}

	items := make([]Item, 0, len(flavors)*2)
	for _, size := range []string{"30", "10"} {
		for _, f := range flavors {
			items = append(items, Item{
				ID:          ItemID{Size: size, Flavor: f.key},
				Name:        f.name + " " + size + " ml",
				Tag:         f.tag,
				Description: f.desc,
			})
		}
	}

	c, err := NewCatalog(items)
	if err != nil {
		// The built-in assortment has no duplicates.
		panic(err)
	}
	return c
}
