package collabclient

import (
	"fmt"
	"math/rand/v2"
)

// RandomName returns a throwaway display name like "User417".
func RandomName() string {
	return fmt.Sprintf("User%d", rand.IntN(1000))
}

// RandomColor returns a random #rrggbb color.
func RandomColor() string {
	return fmt.Sprintf("#%06x", rand.IntN(0x1000000))
}
