// Package searchtool implements search_code and load_context from
// spec.md §4.6, grounded on the teacher's pkg/tool/filetool/grep_search.go
// regex-over-files scan, generalized here into the "regex + semantic
// hybrid" spec.md describes: a regex pass always runs; when kind is
// "semantic" and a Retriever is configured, its results are merged in
// (the "external retrieval collaborator" spec.md names), otherwise
// the handler degrades gracefully to regex-only. The two legs run
// concurrently via errgroup, grounded on the teacher's
// pkg/agent/workflowagent/parallel.go use of golang.org/x/sync/errgroup
// to fan out independent work, since the semantic leg is a network
// round trip to an external MCP server and has no reason to block the
// local filesystem walk.
package searchtool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/agentforge/fixloop/pkg/state"
	"github.com/agentforge/fixloop/pkg/tool"
	"github.com/agentforge/fixloop/pkg/tool/pathsafe"
)

const maxSearchResults = 50

// Retriever is the external semantic-retrieval collaborator spec.md
// §4.6's search_code names; nil means regex-only search.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]string, error)
}

// Register adds search_code and load_context to reg.
func Register(reg *tool.Registry, root string, retriever Retriever, phases []state.Phase) {
	reg.Register(tool.Registration{Name: "search_code", Handler: SearchCode(root, retriever), Phases: phases, Mutates: tool.ReadOnly, Priority: 6})
	reg.Register(tool.Registration{Name: "load_context", Handler: LoadContext(root), Phases: phases, Mutates: tool.ReadOnly, Priority: 4})
}

// SearchCode performs a regex scan of the project tree for query, and
// when kind=="semantic" and a retriever is wired,
// appends its suggestions as additional candidate file hits.
func SearchCode(root string, retriever Retriever) tool.Handler {
	return func(ctx context.Context, _ tool.StepContext, params map[string]string) string {
		query := params["query"]
		if query == "" {
			return "ERROR: query is required"
		}
		kind := params["kind"]

		regex, err := regexp.Compile(query)
		if err != nil {
			return fmt.Sprintf("ERROR: invalid query: %v", err)
		}

		// The lexical walk and the semantic leg are independent: one
		// scans the local tree, the other is a round trip to an
		// external retriever. Neither leg's result depends on the
		// other, so they run concurrently and are merged once both
		// finish, instead of paying the semantic leg's latency after
		// the walk has already completed.
		var lexical, semantic strings.Builder
		var lexicalTotal, semanticTotal int

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			lexicalTotal = walkLexical(root, regex, &lexical)
			return nil
		})
		g.Go(func() error {
			if kind != "semantic" || retriever == nil {
				return nil
			}
			hits, rerr := retriever.Retrieve(gctx, query, maxSearchResults)
			if rerr != nil {
				return nil
			}
			for _, h := range hits {
				semantic.WriteString("SEMANTIC: " + h + "\n")
				semanticTotal++
			}
			return nil
		})
		_ = g.Wait()

		total := lexicalTotal + semanticTotal
		if total == 0 {
			return fmt.Sprintf("SUCCESS: no matches for %q", query)
		}
		return fmt.Sprintf("SUCCESS: %d matches\n%s%s", total, lexical.String(), semantic.String())
	}
}

// walkLexical scans root for lines matching regex, writing
// "path:line: text" entries into b, capped at maxSearchResults.
func walkLexical(root string, regex *regexp.Regexp, b *strings.Builder) int {
	total := 0
	_ = filepath.Walk(root, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil || info.IsDir() || total >= maxSearchResults {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		if isIgnored(rel) {
			return nil
		}
		content, readErr := os.ReadFile(p)
		if readErr != nil {
			return nil
		}
		for i, line := range strings.Split(string(content), "\n") {
			if total >= maxSearchResults {
				break
			}
			if regex.MatchString(line) {
				b.WriteString(fmt.Sprintf("%s:%d: %s\n", rel, i+1, line))
				total++
			}
		}
		return nil
	})
	return total
}

func isIgnored(rel string) bool {
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		switch part {
		case ".git", "venv", ".venv", "__pycache__", "node_modules", ".tox":
			return true
		}
	}
	return false
}

// LoadContext checks that path resolves inside root, reads it, and
// reports its size. The content is neither returned nor stored, so
// nothing reaches precomputed.yaml or later steps' context.
func LoadContext(root string) tool.Handler {
	return func(_ context.Context, _ tool.StepContext, params map[string]string) string {
		path := params["path"]
		abs, err := pathsafe.Resolve(root, path)
		if err != nil {
			return "ERROR: " + err.Error()
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			return "ERROR: not found"
		}
		return fmt.Sprintf("SUCCESS: loaded %s (%d bytes)", path, len(content))
	}
}
