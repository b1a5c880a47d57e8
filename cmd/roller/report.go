package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// 输出格式
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// report 一次命令的输出
type report struct {
	Kind   string      `json:"kind" yaml:"kind"`
	Seed   int64       `json:"seed,omitempty" yaml:"seed,omitempty"`
	Result interface{} `json:"result" yaml:"result"`

	// 文本格式的行，每行可带结果分类用于着色
	lines []line
}

type line struct {
	text  string
	class string
}

func (r *report) add(text, class string) {
	r.lines = append(r.lines, line{text: text, class: class})
}

// 结果分类对应的样式
var (
	criticalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD700"))
	extremeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00E676"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	failureStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9E9E9E"))
	fumbleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF1744"))
	seedStyle     = lipgloss.NewStyle().Faint(true)
)

func styleFor(class string) (lipgloss.Style, bool) {
	switch {
	case class == "success-critical":
		return criticalStyle, true
	case class == "success-extreme":
		return extremeStyle, true
	case strings.HasPrefix(class, "success"):
		return successStyle, true
	case class == "failure":
		return failureStyle, true
	case class == "fumble":
		return fumbleStyle, true
	}
	return lipgloss.Style{}, false
}

// write 按格式输出
func (r *report) write(w io.Writer, opts *options) error {
	switch opts.format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}

	for _, l := range r.lines {
		text := l.text
		if style, ok := styleFor(l.class); ok && !opts.noColor {
			text = style.Render(text)
		}
		if _, err := fmt.Fprintln(w, text); err != nil {
			return err
		}
	}
	if r.Seed != 0 {
		seed := fmt.Sprintf("seed: %d", r.Seed)
		if !opts.noColor {
			seed = seedStyle.Render(seed)
		}
		if _, err := fmt.Fprintln(w, seed); err != nil {
			return err
		}
	}
	return nil
}
