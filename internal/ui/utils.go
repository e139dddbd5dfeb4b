package ui

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/forest-guardian/wooded-mask/internal/properties"
)

// Colors for consistent UI
const (
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorReset  = "\033[0m"
)

var stdin = bufio.NewReader(os.Stdin)

// PrintWarning displays a warning message with consistent formatting
func PrintWarning(message string) {
	fmt.Printf("%s\nWarning:%s\n", ColorYellow, ColorReset)
	fmt.Printf("%s%s%s\n", ColorYellow, message, ColorReset)
}

// PrintError displays an error message with consistent formatting
func PrintError(message string) {
	fmt.Printf("\n%sError: %s%s\n", ColorRed, message, ColorReset)
}

// PrintSuccess displays a success message with consistent formatting
func PrintSuccess(message string) {
	fmt.Printf("\n%s%s%s\n", ColorGreen, message, ColorReset)
}

// PrintInfo displays an info message with consistent formatting
func PrintInfo(message string) {
	fmt.Printf("%s%s%s", ColorBlue, message, ColorReset)
}

// ReadString reads a string from stdin with trimming
func ReadString(prompt string) string {
	input, _ := readLine(prompt)
	return input
}

func readLine(prompt string) (string, error) {
	PrintInfo(prompt)
	input, err := stdin.ReadString('\n')
	return strings.TrimSpace(input), err
}

// ReadInt reads an integer from stdin; an empty answer returns def.
func ReadInt(prompt string, def, min, max int) (int, error) {
	input := ReadString(prompt)
	if input == "" {
		return def, nil
	}
	value, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", input)
	}
	if value < min || value > max {
		return 0, fmt.Errorf("value must be between %d and %d", min, max)
	}
	return value, nil
}

// ReadFloat reads a float from stdin; an empty answer returns def.
func ReadFloat(prompt string, def float64) (float64, error) {
	input := ReadString(prompt)
	if input == "" {
		return def, nil
	}
	value, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", input)
	}
	return value, nil
}

// ReadPath reads a file path that must exist. Relative paths are resolved
// against the data folder when they do not exist as given.
func ReadPath(prompt string) (string, error) {
	input := ReadString(prompt)
	if input == "" {
		return "", fmt.Errorf("a path is required")
	}
	return resolvePath(input)
}

// ReadOptionalPath is ReadPath where an empty answer is allowed.
func ReadOptionalPath(prompt string) (string, error) {
	input := ReadString(prompt)
	if input == "" {
		return "", nil
	}
	return resolvePath(input)
}

func resolvePath(input string) (string, error) {
	if _, err := os.Stat(input); err == nil {
		return input, nil
	}
	if !filepath.IsAbs(input) {
		candidate := properties.DataPath(input)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("file not found: %s", input)
}

// ReadYesNo reads a y/n answer; anything else returns def.
func ReadYesNo(prompt string, def bool) bool {
	switch strings.ToLower(ReadString(prompt)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}
	return def
}

// CreateResultDirectory creates data/result/<scene>/<resultType>.
func CreateResultDirectory(scene, resultType string) (string, error) {
	resultPath := properties.DataPath("result", scene, resultType)
	if err := os.MkdirAll(resultPath, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create result folder: %v", err)
	}
	return resultPath, nil
}
