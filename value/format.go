package value

import "strconv"

func formatFloat(n float64) string {
	return strconv.FormatFloat(n, 'g', -1, 64)
}
