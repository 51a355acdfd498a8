package detector

import (
	"sort"
	"strconv"
	"strings"
)

// benignLabel returns true for the names that mean "no attack" in common
// intrusion datasets. Class 0 is always the benign class.
func benignLabel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "benign", "normal", "legitimate":
		return true
	}
	return false
}

// encodeLabels maps raw string labels to dense class indices with benign
// pinned to class 0. Purely numeric label sets keep their own values so an
// upstream "0 = benign, 1..k = attack type" encoding passes through intact.
func encodeLabels(labels []string) ([]int, []string) {
	numeric := true
	maxClass := 0
	for _, l := range labels {
		v, err := strconv.Atoi(strings.TrimSpace(l))
		if err != nil || v < 0 {
			numeric = false
			break
		}
		if v > maxClass {
			maxClass = v
		}
	}

	if numeric {
		classes := make([]string, maxClass+1)
		for c := range classes {
			classes[c] = strconv.Itoa(c)
		}
		y := make([]int, len(labels))
		for i, l := range labels {
			y[i], _ = strconv.Atoi(strings.TrimSpace(l))
		}
		return y, classes
	}

	seen := make(map[string]struct{})
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for l := range seen {
		classes = append(classes, l)
	}
	sort.Strings(classes)
	// Move the benign name, if any, to the front.
	for i, l := range classes {
		if benignLabel(l) {
			classes = append(classes[:i], classes[i+1:]...)
			classes = append([]string{l}, classes...)
			break
		}
	}

	index := make(map[string]int, len(classes))
	for c, l := range classes {
		index[l] = c
	}
	y := make([]int, len(labels))
	for i, l := range labels {
		y[i] = index[l]
	}
	return y, classes
}

// classIndex resolves a label against a frozen class table, appending unseen
// labels past the end so evaluation on a drifted label set still lines up.
func classIndex(classes []string, extra map[string]int, label string) int {
	for c, l := range classes {
		if l == label {
			return c
		}
	}
	if c, ok := extra[label]; ok {
		return c
	}
	c := len(classes) + len(extra)
	extra[label] = c
	return c
}
