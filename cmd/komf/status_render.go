package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"komf/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// daemonLines summarizes a reachable daemon.
func daemonLines(status api.DaemonStatus, colorize bool) []string {
	lines := []string{
		renderStatusLine("komf", statusOK, fmt.Sprintf("Running (pid %d, since %s)", status.PID, status.StartedAt), colorize),
		renderStatusLine("Media server", statusInfo, fmt.Sprintf("%s at %s", status.MediaServer, status.MediaServerURL), colorize),
		renderStatusLine("Database", statusInfo, status.DatabasePath, colorize),
		renderStatusLine("Running jobs", statusInfo, fmt.Sprintf("%d", status.RunningJobs), colorize),
		renderStatusLine("Aggregation", statusInfo, yesNo(status.Aggregate), colorize),
	}
	if status.NotificationsOn {
		lines = append(lines, renderStatusLine("Notifications", statusOK, "ntfy configured", colorize))
	} else {
		lines = append(lines, renderStatusLine("Notifications", statusWarn, "not configured", colorize))
	}
	return lines
}

// providerLines reports each provider, warning when none is enabled.
func providerLines(providers []api.ProviderInfo, colorize bool) []string {
	lines := make([]string, 0, len(providers)+1)
	enabled := 0
	for _, p := range providers {
		if p.Enabled {
			enabled++
			lines = append(lines, renderStatusLine(p.Name, statusOK, fmt.Sprintf("Enabled (priority %d)", p.Priority), colorize))
			continue
		}
		lines = append(lines, renderStatusLine(p.Name, statusInfo, "Disabled", colorize))
	}
	if enabled == 0 {
		lines = append([]string{renderStatusLine("Summary", statusError, "No providers enabled", colorize)}, lines...)
	}
	return lines
}
