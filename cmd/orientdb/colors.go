package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ANSI escape sequences used by the output helpers.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
)

var colorsEnabled = true

func init() {
	// NO_COLOR is the conventional opt-out; a dumb terminal cannot render
	// escapes at all.
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		colorsEnabled = false
	}
}

func colorize(color, text string) string {
	if !colorsEnabled {
		return text
	}
	return color + text + ansiReset
}

func colorRed(text string) string    { return colorize(ansiRed, text) }
func colorGreen(text string) string  { return colorize(ansiGreen, text) }
func colorYellow(text string) string { return colorize(ansiYellow, text) }
func colorBlue(text string) string   { return colorize(ansiBlue, text) }
func colorCyan(text string) string   { return colorize(ansiCyan, text) }
func colorBold(text string) string   { return colorize(ansiBold, text) }
func colorDim(text string) string    { return colorize(ansiDim, text) }

// Output helpers

func printSuccess(message string) {
	fmt.Println(colorGreen("✓") + " " + message)
}

func printError(message string) {
	fmt.Fprintln(os.Stderr, colorRed("✗")+" "+message)
}

func printWarning(message string) {
	fmt.Println(colorYellow("⚠") + " " + message)
}

func printInfo(message string) {
	fmt.Println(colorBlue("ℹ") + " " + message)
}

func printStep(step, total int, message string) {
	fmt.Printf("[%s/%d] %s\n", colorCyan(fmt.Sprintf("%d", step)), total, message)
}

func printHeader(title string) {
	fmt.Println("\n" + colorBold(colorCyan(title)))
	fmt.Println(colorDim(strings.Repeat("─", 40)))
}

// printTable renders rows under padded headers. Cells are padded before
// coloring so escape bytes do not count against the column width.
func printTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for i, h := range headers {
		fmt.Print(colorBold(fmt.Sprintf("%-*s", widths[i], h)) + "  ")
	}
	fmt.Println()

	for _, w := range widths {
		fmt.Print(strings.Repeat("─", w) + "  ")
	}
	fmt.Println()

	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			fmt.Printf("%-*s  ", widths[i], cell)
		}
		fmt.Println()
	}
}

// promptConfirm asks a yes/no question on stdin, defaulting to no.
func promptConfirm(message string) bool {
	fmt.Printf("%s [y/N]: ", message)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
