// Package intutils provides utilities for working with ints
package intutils

// Min calculates and returns the minimum integer in a list
func Min(ints ...int) int {
	min := ints[0]
	for _, val := range ints {
		if val < min {
			min = val
		}
	}
	return min
}

// Max calculates and returns the maximum int in a list
func Max(ints ...int) int {
	max := ints[0]
	for _, val := range ints {
		if val > max {
			max = val
		}
	}
	return max
}

// Abs returns the absolute value of an int
func Abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// Clip clips an int to within a minimum and maximum value
func Clip(value, min, max int) int {
	if value > max {
		return max
	}
	if value < min {
		return min
	}
	return value
}
