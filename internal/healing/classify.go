package healing

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrorType buckets a failed command by what kind of problem the output
// describes. Each type routes to one specialist role.
type ErrorType string

const (
	BuildError      ErrorType = "build_error"
	DependencyError ErrorType = "dependency_error"
	TestFailure     ErrorType = "test_failure"
	RuntimeError    ErrorType = "runtime_error"
	ConfigError     ErrorType = "config_error"
	PortInUse       ErrorType = "port_in_use"
	Unknown         ErrorType = "unknown"
)

// Classification is the classifier's verdict plus whatever concrete detail
// it could extract from the output.
type Classification struct {
	Type     ErrorType `json:"type"`
	Message  string    `json:"message"`
	Port     int       `json:"port,omitempty"`
	File     string    `json:"file,omitempty"`
	Line     int       `json:"line,omitempty"`
	TestName string    `json:"test_name,omitempty"`
	Package  string    `json:"package,omitempty"`
}

// Rule is a user-supplied classification rule evaluated before the built-in
// patterns. The expression sees {output, stderr, exit_code} and must yield a
// boolean; the first matching rule wins.
type Rule struct {
	When string
	Then ErrorType
}

// Classifier assigns an ErrorType to failed command output. Custom rules run
// first; the built-in signal patterns are the fallback, and anything they
// don't recognize classifies as Unknown. Classification is best-effort and
// never faults: a rule that fails to compile or evaluate is skipped.
type Classifier struct {
	rules []Rule

	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewClassifier creates a Classifier with the given custom rules.
func NewClassifier(rules ...Rule) *Classifier {
	return &Classifier{rules: rules, programs: make(map[string]*vm.Program)}
}

// Classify inspects a failed command's output and returns its verdict.
func (c *Classifier) Classify(result Result) Classification {
	output := result.CombinedOutput()
	env := map[string]any{
		"output":    strings.ToLower(output),
		"stderr":    strings.ToLower(result.Stderr),
		"exit_code": result.ExitCode,
	}

	for _, rule := range c.rules {
		matched, err := c.evalRule(rule.When, env)
		if err != nil || !matched {
			continue
		}
		return classifyAs(rule.Then, output)
	}

	return classifyBuiltin(output)
}

func (c *Classifier) evalRule(expression string, env map[string]any) (bool, error) {
	c.mu.RLock()
	program, ok := c.programs[expression]
	c.mu.RUnlock()

	if !ok {
		var err error
		program, err = expr.Compile(expression, expr.Env(env), expr.AsBool())
		if err != nil {
			return false, err
		}
		c.mu.Lock()
		c.programs[expression] = program
		c.mu.Unlock()
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	return ok && b, nil
}

// classifyAs builds a Classification of a forced type, still extracting the
// type-specific detail from the output.
func classifyAs(t ErrorType, output string) Classification {
	cl := Classification{Type: t, Message: firstLines(output, 5)}
	switch t {
	case PortInUse:
		cl.Port = extractPort(output)
	case BuildError:
		cl.File, cl.Line = extractFileLine(output)
	case TestFailure:
		cl.TestName = extractTestName(output)
	case DependencyError:
		cl.Package = extractPackage(output)
	}
	return cl
}

// classifyBuiltin applies the built-in signal patterns in priority order.
func classifyBuiltin(output string) Classification {
	lower := strings.ToLower(output)

	// Port/binding conflicts first: they are the most specific and the cheapest to fix.
	if (strings.Contains(lower, "port") && (strings.Contains(lower, "in use") || strings.Contains(lower, "already"))) ||
		strings.Contains(lower, "address already in use") ||
		strings.Contains(lower, "eaddrinuse") ||
		(strings.Contains(lower, "bind") && strings.Contains(lower, "address")) {
		return classifyAs(PortInUse, output)
	}

	if strings.Contains(lower, "compile") || strings.Contains(lower, "build failed") ||
		strings.Contains(lower, "syntax error") || strings.Contains(lower, "cannot find symbol") ||
		strings.Contains(lower, "compilation") || strings.Contains(lower, "build failure") ||
		strings.Contains(lower, "non-zero exit") {
		return classifyAs(BuildError, output)
	}

	// Path problems read as build errors: the fix is structural, not behavioral.
	if strings.Contains(lower, "no such file") || strings.Contains(lower, "invalid path") ||
		strings.Contains(lower, "os error 2") || strings.Contains(lower, "os error 3") ||
		(strings.Contains(lower, "directory") && strings.Contains(lower, "not")) {
		return classifyAs(BuildError, output)
	}

	if strings.Contains(lower, "test failed") || strings.Contains(lower, "assertion") ||
		(strings.Contains(lower, "expected") && strings.Contains(lower, "but")) ||
		strings.Contains(lower, "junit") || strings.Contains(lower, "pytest") ||
		(strings.Contains(lower, "tests run:") && strings.Contains(lower, "failures:")) {
		return classifyAs(TestFailure, output)
	}

	if strings.Contains(lower, "dependency") || strings.Contains(lower, "could not resolve") ||
		strings.Contains(lower, "package not found") || strings.Contains(lower, "module not found") ||
		strings.Contains(lower, "no such module") || strings.Contains(lower, "unresolved import") ||
		(strings.Contains(lower, "artifact") && strings.Contains(lower, "not found")) {
		return classifyAs(DependencyError, output)
	}

	if strings.Contains(lower, "configuration") || strings.Contains(lower, "properties") ||
		strings.Contains(lower, "application.yml") || strings.Contains(lower, "profile") ||
		(strings.Contains(lower, "env") && strings.Contains(lower, "missing")) {
		return classifyAs(ConfigError, output)
	}

	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "exception") || strings.Contains(lower, "stacktrace") ||
		strings.Contains(lower, "not running") || strings.Contains(lower, "crash") ||
		strings.Contains(lower, "killed") || strings.Contains(lower, "out of memory") {
		return classifyAs(RuntimeError, output)
	}

	return Classification{Type: Unknown, Message: firstLines(output, 5)}
}

// defaultFallbackPort is assumed when a port conflict carries no usable number.
const defaultFallbackPort = 8080

var (
	portPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[Pp]ort\s+(\d+)`),
		regexp.MustCompile(`:(\d{4,5})\b`),
		regexp.MustCompile(`(\d{4,5})\s+(?:is\s+)?(?:already\s+)?in\s+use`),
	}
	fileLinePattern = regexp.MustCompile(`([A-Za-z0-9_/.-]+\.[a-z]{1,5}):(\d+)`)
	testNamePattern = regexp.MustCompile(`test[A-Za-z0-9_]+`)
	packagePatterns = []*regexp.Regexp{
		regexp.MustCompile(`package '([^']+)'`),
		regexp.MustCompile(`module '([^']+)'`),
		regexp.MustCompile(`dependency '([^']+)'`),
	}
)

// extractPort pulls a port number out of a binding error. Numbers below 1024
// are rejected as likely line numbers or false matches.
func extractPort(output string) int {
	for _, re := range portPatterns {
		m := re.FindStringSubmatch(output)
		if m == nil {
			continue
		}
		port, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if port >= 1024 && port <= 65535 {
			return port
		}
	}
	return defaultFallbackPort
}

func extractFileLine(output string) (string, int) {
	m := fileLinePattern.FindStringSubmatch(output)
	if m == nil {
		return "", 0
	}
	line, _ := strconv.Atoi(m[2])
	return m[1], line
}

func extractTestName(output string) string {
	return testNamePattern.FindString(output)
}

func extractPackage(output string) string {
	for _, re := range packagePatterns {
		if m := re.FindStringSubmatch(output); m != nil {
			return m[1]
		}
	}
	return ""
}

// firstLines keeps the leading n lines of output for a readable message.
func firstLines(s string, n int) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n")
}
