// Corpus probe: loads reference documents the way the CLI does and shows
// how the offline fact checker sees them. Useful for tuning a document set
// before pointing a model at it.
//
//	go run ./cmd/corpus-probe --doc notes.md --doc https://example.com/page "Revenue grew 15%"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/credence/internal/capability"
	"github.com/ppiankov/credence/internal/corpus"
	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/util"
)

type docFlags []string

func (d *docFlags) String() string     { return strings.Join(*d, ",") }
func (d *docFlags) Set(v string) error { *d = append(*d, v); return nil }

func main() {
	var docs docFlags
	flag.Var(&docs, "doc", "document path, directory or URL (repeatable; default: sample corpus)")
	timeout := flag.Duration("timeout", 30*time.Second, "load timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var documents model.Corpus
	if len(docs) == 0 {
		documents = corpus.Sample()
	} else {
		fetcher := corpus.NewFetcher(corpus.FetcherConfig{
			UserAgent:     "Credence/0.1 (+https://github.com/ppiankov/credence)",
			RespectRobots: true,
			MaxAttempts:   2,
		}, nil)
		var err error
		documents, err = corpus.NewLoader(fetcher, 4).Load(ctx, docs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("=== Corpus ===")
	fmt.Println()
	total := 0
	for i, doc := range documents {
		sentences := util.SplitSentences(doc)
		total += len(sentences)
		fmt.Printf("[%d] %d chars, %d sentences\n", i+1, len(doc), len(sentences))
		if len(sentences) > 0 {
			fmt.Printf("    %s\n", clip(sentences[0], 100))
		}
	}
	fmt.Printf("\n%d documents, %d sentences\n", len(documents), total)

	claims := flag.Args()
	if len(claims) == 0 {
		return
	}

	fmt.Println()
	fmt.Println("=== Offline verdicts ===")
	fmt.Println()
	checker := capability.NewHeuristic(documents)
	for _, claim := range claims {
		resp, err := checker.Check(ctx, capability.CheckRequest{Claim: claim, Documents: documents})
		if err != nil {
			fmt.Printf("  %s\n    error: %v\n", claim, err)
			continue
		}
		fmt.Printf("  %s\n    %s (%.2f) %s\n", claim, resp.Status, resp.Confidence, resp.Reasoning)
		for _, ev := range resp.Evidence {
			fmt.Printf("    evidence: %s\n", clip(ev, 100))
		}
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
