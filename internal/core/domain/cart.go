package domain

// CartLine is one user's pending requested quantity for one item.
// A stored line always has Quantity >= 1; a change that would drop it to zero
// or below removes the line instead.
type CartLine struct {
	ItemID   ItemID
	Quantity int
}

// CartTotal sums the quantities across lines.
func CartTotal(lines []CartLine) int {
	total := 0
	for _, ln := range lines {
		total += ln.Quantity
	}
	return total
}
