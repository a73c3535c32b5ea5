package reducer

import (
	"fmt"
	"hash/fnv"
	"math"
)

// ColorFor derives a stable "#rrggbb" colour from an identity: FNV-1a
// picks the hue, saturation in [45,75) and lightness in [40,60).
func ColorFor(identity string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	sum := h.Sum32()

	hue := float64(sum % 360)
	sat := float64(45+(sum/360)%30) / 100
	light := float64(40+(sum/10800)%20) / 100
	r, g, b := hslToRGB(hue, sat, light)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	to := func(v float64) uint8 { return uint8(math.Round((v + m) * 255)) }
	return to(r), to(g), to(b)
}
