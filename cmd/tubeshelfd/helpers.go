package main

import (
	"os"
	"regexp"
	"strings"
)

func stdoutFd() uintptr {
	return os.Stdout.Fd()
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// stripHTML removes the anchor markup task messages carry for web UIs.
func stripHTML(message string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(message, ""))
}
