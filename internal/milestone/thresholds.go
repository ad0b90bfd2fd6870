package milestone

// Fixed achievement tables. A tick that crosses several thresholds at
// once fires only the highest; lower bands are implied and never fire
// late.
var (
	scoringThresholds = []int{30, 40}
	doubleThresholds  = []int{2, 3, 4} // categories at 10+: double-double and up
	stocksThresholds  = []int{5, 10, 15, 20}
)

// A new largest lead is only worth announcing at this magnitude or more.
const minLeadMagnitude = 5

// Stat categories count toward a double at this value.
const doubleCategoryFloor = 10

// highestCrossed returns the highest threshold the value has reached,
// or 0 when none has.
func highestCrossed(thresholds []int, value int) int {
	crossed := 0
	for _, th := range thresholds {
		if value >= th {
			crossed = th
		}
	}
	return crossed
}
