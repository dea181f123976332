//go:build ignore

// Package main generates a synthetic document corpus for benchmarking
// registration, chunking, and search.
// Usage: go run scripts/generate-test-corpus.go -files 1000 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of documents to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var reportTemplate = `# %s Report: %s

## Summary

This document covers %s findings for the %s program, compiled during
the %s review cycle. It addresses %s considerations raised by
stakeholders and outlines recommended next steps.

## Background

The %s initiative began as a response to growing demand for %s
capabilities across the organization. Early %s prototypes demonstrated
measurable gains in %s, prompting a wider rollout.

## Findings

1. %s metrics improved by a measurable margin after the %s changes
   were deployed.
2. Stakeholders flagged %s as an area needing further investment.
3. The %s team recommends continued monitoring of %s indicators.

## Recommendations

- Expand the %s program to cover additional %s use cases.
- Schedule a follow-up %s review within the next quarter.
- Document the %s process for future audits.

## Appendix

Reference data and supporting %s material are retained in the project
archive under the %s heading.
`

var memoTemplate = `MEMORANDUM

To: %s Working Group
From: %s Office
Subject: %s Update

This memo summarizes recent %s activity and its impact on the %s
schedule. The %s team has completed its review of %s requirements and
is prepared to proceed with the %s phase.

Key points:
- %s has been finalized pending %s sign-off.
- Outstanding %s items will be tracked under the %s backlog.
- The next %s checkpoint is scheduled once %s dependencies clear.

Please direct questions about %s to the %s office.
`

var noteTemplate = `Meeting Notes — %s

Attendees discussed the status of the %s workstream and its
dependencies on %s. The %s lead gave an update on %s progress and
raised concerns about %s timelines.

Action items:
- Follow up on %s with the %s team.
- Confirm %s requirements before the next %s milestone.
- Circulate the %s summary to the broader %s group.

Next meeting will cover %s and any outstanding %s questions.
`

var nouns = []string{
	"Budget", "Compliance", "Logistics", "Operations", "Procurement",
	"Onboarding", "Migration", "Security", "Accessibility", "Training",
	"Infrastructure", "Partnership", "Research", "Outreach", "Planning",
	"Governance", "Audit", "Forecast", "Deployment", "Integration",
}

var adjectives = []string{
	"quarterly", "preliminary", "revised", "internal", "confidential",
	"regional", "annual", "draft", "final", "updated",
	"cross-team", "department-wide", "external", "interim", "consolidated",
}

var domains = []string{
	"customer support", "data retention", "vendor management", "risk assessment",
	"staff scheduling", "facilities planning", "knowledge management", "change control",
	"capacity planning", "incident response", "quality assurance", "records management",
}

func main() {
	flag.Parse()
	rand.Seed(*seed)

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	subdirs := []string{"reports", "memos", "notes"}
	for _, subdir := range subdirs {
		if err := os.MkdirAll(filepath.Join(*outputDir, subdir), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating subdirectory %s: %v\n", subdir, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generating %d documents in %s...\n", *numFiles, *outputDir)

	reportFiles := *numFiles * 50 / 100
	memoFiles := *numFiles * 30 / 100
	noteFiles := *numFiles - reportFiles - memoFiles

	generated := 0
	for i := 0; i < reportFiles; i++ {
		if err := generateReport(i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating report %d: %v\n", i, err)
			continue
		}
		generated++
	}
	for i := 0; i < memoFiles; i++ {
		if err := generateMemo(i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating memo %d: %v\n", i, err)
			continue
		}
		generated++
	}
	for i := 0; i < noteFiles; i++ {
		if err := generateNote(i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating note %d: %v\n", i, err)
			continue
		}
		generated++
	}

	fmt.Printf("Generated %d documents successfully.\n", generated)
}

func randomWord(pool []string) string {
	return pool[rand.Intn(len(pool))]
}

func generateReport(index int) error {
	noun := randomWord(nouns)
	adj := randomWord(adjectives)
	domain := randomWord(domains)

	content := fmt.Sprintf(reportTemplate,
		adj, noun, domain, noun, adj, domain,
		noun, domain, noun, domain,
		domain, noun, domain, noun, domain,
		noun, domain, adj, noun,
		domain, noun,
	)

	filename := filepath.Join(*outputDir, "reports", fmt.Sprintf("%s-%s-%d.md", strings.ToLower(adj), strings.ToLower(noun), index))
	return os.WriteFile(filename, []byte(content), 0o644)
}

func generateMemo(index int) error {
	noun := randomWord(nouns)
	domain := randomWord(domains)

	content := fmt.Sprintf(memoTemplate,
		noun, noun, noun,
		domain, noun, noun, domain, noun,
		noun, domain, domain, noun,
		noun, domain,
		domain, noun,
	)

	filename := filepath.Join(*outputDir, "memos", fmt.Sprintf("memo-%s-%d.txt", strings.ToLower(noun), index))
	return os.WriteFile(filename, []byte(content), 0o644)
}

func generateNote(index int) error {
	noun := randomWord(nouns)
	domain := randomWord(domains)

	content := fmt.Sprintf(noteTemplate,
		noun, noun, domain, noun, domain, domain,
		domain, noun, domain, noun,
		noun, noun,
		domain, domain,
	)

	filename := filepath.Join(*outputDir, "notes", fmt.Sprintf("notes-%s-%d.txt", strings.ToLower(noun), index))
	return os.WriteFile(filename, []byte(content), 0o644)
}
