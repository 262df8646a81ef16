// Package ui provides colored terminal output for the one-shot CLI mode.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const headerWidth = 60

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	stepColor    = color.New(color.FgBlue)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgWhite)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// Header prints a centered section header with rule lines.
func Header(text string) {
	line := strings.Repeat("=", headerWidth)
	headerColor.Println(line)
	headerColor.Println(center(text, headerWidth))
	headerColor.Println(line)
}

// Step prints a numbered progress step.
func Step(n, total int, text string) {
	stepColor.Printf("[%d/%d] %s\n", n, total, text)
}

// Success prints a success message.
func Success(text string) {
	successColor.Printf("✓ %s\n", text)
}

// Info prints a neutral informational message.
func Info(text string) {
	infoColor.Println(text)
}

// Warning prints a warning message.
func Warning(text string) {
	warnColor.Printf("⚠ %s\n", text)
}

// Error prints an error message.
func Error(text string) {
	errorColor.Printf("✗ %s\n", text)
}

// BlueText returns the text colored blue.
func BlueText(text string) string {
	return stepColor.Sprint(text)
}

// YellowText returns the text colored yellow.
func YellowText(text string) string {
	return warnColor.Sprint(text)
}

// center left-pads text so it sits in the middle of width. Text wider than
// width is returned unchanged.
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return fmt.Sprintf("%s%s", strings.Repeat(" ", padding), text)
}
