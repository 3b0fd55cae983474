package executor

import (
	"regexp"
	"strconv"
	"strings"
)

var failedCountRe = regexp.MustCompile(`(\d+)\s+failed`)

// TestsPassing inspects a run_tests handler's output text and reports
// whether the suite passed. An ERROR-prefixed output (exec failure,
// timeout) is treated as not-passing, since the suite's real state is
// unknown and the executor must fail closed. Exported so
// pkg/fixworkflow's final re-check before emitting a ResolutionRecord
// parses run_tests output the same way the Executor does.
func TestsPassing(output string) bool {
	if strings.HasPrefix(output, "ERROR:") {
		return false
	}
	if m := failedCountRe.FindStringSubmatch(output); m != nil {
		n, err := strconv.Atoi(m[1])
		return err == nil && n == 0
	}
	return true
}

var complexityRe = regexp.MustCompile(`(?i)complexity\s+\d`)

// ChecksPassing inspects a run_check handler's output text. The
// conformance runner's passing line is "Check PASSED" per
// pkg/tool/checktool's documented contract; anything else — a
// complexity/violation message or an ERROR-prefixed failure — counts as
// still failing. Exported for the same reason as TestsPassing.
func ChecksPassing(output string) bool {
	if strings.HasPrefix(output, "ERROR:") {
		return false
	}
	if complexityRe.MatchString(output) {
		return false
	}
	return strings.Contains(strings.ToUpper(output), "PASSED")
}
