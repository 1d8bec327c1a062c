package metadata

import (
	"path/filepath"
	"strings"
)

// ImageType is the frame kind guessed from the file location
type ImageType string

const (
	Light ImageType = "LIGHT"
	Dark  ImageType = "DARK"
	Bias  ImageType = "BIAS"
	Flat  ImageType = "FLAT"
	Test  ImageType = "TEST"
)

// classifyOrder is the precedence when several tokens match
var classifyOrder = []ImageType{Flat, Dark, Bias, Test}

// ClassifyImageType matches frame-type tokens case-insensitively in the
// innermost directory and the file name. It is a best-effort heuristic: a
// directory named "bias_test" classifies as BIAS because BIAS outranks TEST.
func ClassifyImageType(directory, name string) ImageType {
	haystack := strings.ToLower(filepath.Base(directory) + "/" + name)
	for _, t := range classifyOrder {
		if strings.Contains(haystack, strings.ToLower(string(t))) {
			return t
		}
	}
	return Light
}
