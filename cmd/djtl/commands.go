package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/deicod/godtl/lexer"
)

func (a *app) lexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lex FILE",
		Short: "Print the segments of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			source := lexer.NewSource(string(text))
			stream, err := lexer.NewLexer(a.env.LexerConfig()).Tokenize(source)
			if err != nil {
				report(cmd.ErrOrStderr(), err, source.Text())
				return fmt.Errorf("lexing %s failed", args[0])
			}
			printSegments(cmd.OutOrStdout(), source, stream.Segments())
			return nil
		},
	}
}

func printSegments(w io.Writer, source lexer.Source, segments []lexer.Segment) {
	for _, segment := range segments {
		line, column := source.Position(segment.At.Offset)
		fmt.Fprintf(w, "%d:%d\t%s%s\t%q", line, column, segment.Type, segment.At, source.Content(segment.Content))
		if segment.Type == lexer.SegmentTag {
			if tag, err := lexer.LexTag(source, segment); err == nil {
				fmt.Fprintf(w, "\tname=%q parts=%q", source.Content(tag.Name), source.Content(tag.Parts))
			}
		}
		fmt.Fprintln(w)
	}
}

func (a *app) parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse FILE",
		Short: "Print the syntax tree of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			tmpl, err := a.env.NewTemplateWithName(string(text), args[0])
			if err != nil {
				report(cmd.ErrOrStderr(), err, string(text))
				return fmt.Errorf("parsing %s failed", args[0])
			}
			fmt.Fprint(cmd.OutOrStdout(), tmpl.Dump())
			return nil
		},
	}
}

// checkResult is the outcome of compiling one file
type checkResult struct {
	source string
	err    error
}

func (a *app) checkCmd() *cobra.Command {
	var jobs int
	cmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Compile templates and report every error",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.check(cmd, args, jobs)
			if err != nil {
				return err
			}

			failed := 0
			for i, result := range results {
				if result.err == nil {
					a.logger.Debug("template ok", "file", args[i])
					continue
				}
				failed++
				report(cmd.OutOrStdout(), result.err, result.source)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d templates failed to compile", failed, len(args))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d templates ok\n", len(args))
			return nil
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "Number of templates compiled concurrently")
	return cmd
}

// check compiles files concurrently. Compile errors are collected per file;
// only I/O failures abort the run.
func (a *app) check(cmd *cobra.Command, files []string, jobs int) ([]checkResult, error) {
	results := make([]checkResult, len(files))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(jobs, 1))
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			text, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			_, compileErr := a.env.NewTemplateWithName(string(text), file)
			results[i] = checkResult{source: string(text), err: compileErr}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
