package letters

// Letters print duplex, two pages per sheet, and a sheet is the billable
// unit. The table covers the page counts the renderer can produce for a
// templated letter; beyond it the same duplex rule is applied
// arithmetically so a pathological page count still bills correctly.
var billableUnitsByPageCount = [...]int{0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5}

// BillableUnitsForPageCount maps a rendered page count to billable units.
// A zero or negative page count bills nothing: it means the letter never
// rendered, and unrendered letters are never charged.
func BillableUnitsForPageCount(pageCount int) int {
	if pageCount <= 0 {
		return 0
	}
	if pageCount < len(billableUnitsByPageCount) {
		return billableUnitsByPageCount[pageCount]
	}
	return (pageCount + 1) / 2
}
