package ranking

// tier is a named band with an inclusive minimum point total.
type tier struct {
	min  float64
	name string
}

// mastersTiers maps Masters point totals to the 18-step progression
// ladder, nine geup grades rising into nine dan grades. Ordered from
// highest minimum to lowest; the last band has minimum zero so every
// total lands somewhere.
var mastersTiers = []tier{
	{min: 24000, name: "9th Dan"},
	{min: 21000, name: "8th Dan"},
	{min: 18000, name: "7th Dan"},
	{min: 15500, name: "6th Dan"},
	{min: 13000, name: "5th Dan"},
	{min: 11000, name: "4th Dan"},
	{min: 9000, name: "3rd Dan"},
	{min: 7500, name: "2nd Dan"},
	{min: 6000, name: "1st Dan"},
	{min: 5000, name: "1st Geup"},
	{min: 4200, name: "2nd Geup"},
	{min: 3500, name: "3rd Geup"},
	{min: 2800, name: "4th Geup"},
	{min: 2200, name: "5th Geup"},
	{min: 1600, name: "6th Geup"},
	{min: 1100, name: "7th Geup"},
	{min: 700, name: "8th Geup"},
	{min: 0, name: "9th Geup"},
}

// TierFor returns the Masters tier name for a raw point total.
func TierFor(points float64) string {
	for _, t := range mastersTiers {
		if points >= t.min {
			return t.name
		}
	}
	return mastersTiers[len(mastersTiers)-1].name
}
