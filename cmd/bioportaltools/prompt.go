package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// prompter reads missing arguments interactively. Prompts go to stderr so
// piped stdout stays clean.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter() *prompter {
	return &prompter{in: bufio.NewReader(os.Stdin), out: os.Stderr}
}

// ask prints the label and returns the trimmed input line.
func (p *prompter) ask(label string) string {
	_, _ = fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}

// askRequired keeps asking until the answer is non-empty.
func (p *prompter) askRequired(label string) string {
	for {
		if answer := p.ask(label); answer != "" {
			return answer
		}
		_, _ = fmt.Fprintln(p.out, "A value is required.")
	}
}

// askBool asks a yes/no style question and falls back to the default on
// empty or unparsable input.
func (p *prompter) askBool(label string, defaultValue bool) bool {
	answer := p.ask(fmt.Sprintf("%s [%t]", label, defaultValue))
	if answer == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(answer)
	if err != nil {
		_, _ = fmt.Fprintf(p.out, "Could not read %q as a boolean, using %t.\n", answer, defaultValue)
		return defaultValue
	}
	return parsed
}

// askTask shows the task menu and returns the chosen task name.
func (p *prompter) askTask() string {
	_, _ = fmt.Fprintln(p.out, "Choose a task:")
	_, _ = fmt.Fprintln(p.out, "  1) download  - sync ontology metadata and source files")
	_, _ = fmt.Fprintln(p.out, "  2) mappings  - download concept mappings")
	_, _ = fmt.Fprintln(p.out, "  3) extract   - extract concept class records")
	for {
		switch p.ask("Task [1-3]") {
		case "1", "download":
			return taskDownload
		case "2", "mappings":
			return taskMappings
		case "3", "extract":
			return taskExtract
		default:
			_, _ = fmt.Fprintln(p.out, "Please answer 1, 2 or 3.")
		}
	}
}

// argOr returns the positional argument at idx or prompts for it.
func argOr(args []string, idx int, p *prompter, label string) string {
	if idx < len(args) && args[idx] != "" {
		return args[idx]
	}
	return p.askRequired(label)
}

// boolArgOr parses the positional argument at idx as a boolean or prompts.
func boolArgOr(args []string, idx int, p *prompter, label string, defaultValue bool) bool {
	if idx < len(args) && args[idx] != "" {
		if parsed, err := strconv.ParseBool(args[idx]); err == nil {
			return parsed
		}
	}
	return p.askBool(label, defaultValue)
}
