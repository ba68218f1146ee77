package dataset

// Collection is a named, ordered set of items keyed by item ID.
// Iteration order is insertion order; replacing an item keeps its position.
//
// Collection is not safe for concurrent mutation.
type Collection struct {
	name  string
	items []*Item
	index map[string]int
}

// NewCollection creates a collection holding items in the given order.
// Later items replace earlier ones with the same ID.
func NewCollection(name string, items ...*Item) *Collection {
	c := &Collection{
		name:  name,
		index: make(map[string]int, len(items)),
	}
	for _, it := range items {
		c.Put(it)
	}
	return c
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Len returns the number of items.
func (c *Collection) Len() int {
	return len(c.items)
}

// Put inserts item, replacing any existing item with the same ID in place.
func (c *Collection) Put(item *Item) {
	if i, ok := c.index[item.ID]; ok {
		c.items[i] = item
		return
	}
	c.index[item.ID] = len(c.items)
	c.items = append(c.items, item)
}

// Get returns the item with the given ID.
func (c *Collection) Get(id string) (*Item, bool) {
	i, ok := c.index[id]
	if !ok {
		return nil, false
	}
	return c.items[i], true
}

// Items returns the items in order. The slice is a copy; the items are not.
func (c *Collection) Items() []*Item {
	out := make([]*Item, len(c.items))
	copy(out, c.items)
	return out
}

// Update merges other into c by item ID.
func (c *Collection) Update(other *Collection) {
	for _, it := range other.items {
		c.Put(it)
	}
}
