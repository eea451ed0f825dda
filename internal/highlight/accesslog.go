package highlight

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// 172.18.0.1 - - [14/Oct/2026:10:00:00 +0000] "GET /rest/todos HTTP/1.1" 200 125 "-" "curl/8.0"
	accessPattern = regexp.MustCompile(`^(\S+) (\S+) (\S+) \[([^\]]+)\] "(\S+) (\S*)(?: (HTTP/[\d.]+))?" (\d{3}) (\d+|-)(.*)$`)

	// Log level patterns
	errorPattern   = regexp.MustCompile(`(?i)\b(error|err|fatal|fail|failed|exception|panic|emerg|crit|alert)\b`)
	warningPattern = regexp.MustCompile(`(?i)\b(warn|warning|caution)\b`)
	noticePattern  = regexp.MustCompile(`(?i)\b(info|notice|information)\b`)
	debugPattern   = regexp.MustCompile(`(?i)\b(debug|trace)\b`)

	ipPattern     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	urlPattern    = regexp.MustCompile(`https?://[^\s"]+`)
	quotedPattern = regexp.MustCompile(`"[^"]*"`)

	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")) // Dim gray
	methodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#CBA6F7")).Bold(true)
	pathStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#89DCEB"))
	ipStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")) // Yellow
	urlStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#89DCEB"))
	stringStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))

	status2xxStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	status3xxStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#89DCEB"))
	status4xxStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAB387"))
	status5xxStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))

	errorLogStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")) // Red
	warningLogStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAB387")) // Orange
	noticeLogStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA")) // Blue
	debugLogStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
)

// AccessLog styles an nginx/OpenResty access line; anything else (error log,
// PostgREST and RabbitMQ output) gets level-based styling.
func AccessLog(line string) string {
	line = StripMarkupSpans(line)
	if m := accessPattern.FindStringSubmatch(line); m != nil {
		return styleAccess(m)
	}
	return styleMessage(line)
}

func styleAccess(m []string) string {
	var b strings.Builder
	b.WriteString(ipStyle.Render(m[1]))
	b.WriteString(" " + m[2] + " " + m[3] + " ")
	b.WriteString(timestampStyle.Render("[" + m[4] + "]"))
	b.WriteString(` "`)
	b.WriteString(methodStyle.Render(m[5]))
	b.WriteString(" " + pathStyle.Render(m[6]))
	if m[7] != "" {
		b.WriteString(" " + m[7])
	}
	b.WriteString(`" `)
	b.WriteString(statusStyle(m[8]).Render(m[8]))
	b.WriteString(" " + m[9])
	b.WriteString(quotedPattern.ReplaceAllStringFunc(m[10], func(s string) string {
		return stringStyle.Render(s)
	}))
	return b.String()
}

func statusStyle(code string) lipgloss.Style {
	switch code[0] {
	case '2':
		return status2xxStyle
	case '3':
		return status3xxStyle
	case '4':
		return status4xxStyle
	default:
		return status5xxStyle
	}
}

// styleMessage colours the line by its level, then highlights IPs and URLs
func styleMessage(message string) string {
	result := message

	result = ipPattern.ReplaceAllStringFunc(result, func(match string) string {
		return ipStyle.Render(match)
	})
	result = urlPattern.ReplaceAllStringFunc(result, func(match string) string {
		return urlStyle.Render(match)
	})

	switch {
	case errorPattern.MatchString(message):
		return errorLogStyle.Render(result)
	case warningPattern.MatchString(message):
		return warningLogStyle.Render(result)
	case noticePattern.MatchString(message):
		return noticeLogStyle.Render(result)
	case debugPattern.MatchString(message):
		return debugLogStyle.Render(result)
	}
	return result
}
