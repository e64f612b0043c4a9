// Command examparse converts exam documents (.docx, .pdf, .txt, .md) into the
// JSON item list the import endpoint stores.
//
//	examparse -input exam.docx [-output exam.json] [-title "Mock test"] [-verbose]
//	examparse -batch -dir ./exams [-output all.json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/russianmaster/russianmaster-lms/internal/examdoc/extract"
)

func main() {
	var (
		input     = flag.String("input", "", "document to parse")
		output    = flag.String("output", "", "write JSON here instead of stdout")
		title     = flag.String("title", "", "title used when the document has no #EXAM_TITLE")
		verbose   = flag.Bool("verbose", false, "log a per-kind summary")
		batch     = flag.Bool("batch", false, "parse every supported file in -dir")
		dir       = flag.String("dir", ".", "directory for -batch")
		pdftotext = flag.String("pdftotext", "pdftotext", "pdftotext binary")
		timeout   = flag.Duration("timeout", 60*time.Second, "per-file extraction timeout")
	)
	flag.Parse()
	log.SetFlags(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ex := extract.New(*pdftotext, *timeout)

	var (
		out    any
		failed bool
	)
	switch {
	case *batch:
		results, err := parseDir(ctx, ex, *dir, *title)
		if err != nil {
			log.Fatalf("examparse: %v", err)
		}
		for _, r := range results {
			if r.Error != "" {
				failed = true
				log.Printf("%s: %s", r.File, r.Error)
			} else if *verbose {
				log.Printf("%s: %s", r.File, summarize(r.Result.Items))
			}
		}
		out = results
	case *input != "":
		res, err := parseFile(ctx, ex, *input, *title)
		if err != nil {
			log.Fatalf("examparse: %s: %v", *input, err)
		}
		if *verbose {
			log.Printf("%s: %s", *input, summarize(res.Items))
		}
		out = res
	default:
		flag.Usage()
		os.Exit(2)
	}

	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("examparse: %v", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		log.Fatalf("examparse: write: %v", err)
	}
	if failed {
		os.Exit(1)
	}
}
