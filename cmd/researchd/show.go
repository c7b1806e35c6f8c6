package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	httpapi "github.com/fyrsmithlabs/researchd/internal/http"
)

type showOptions struct {
	project string
	section string
	html    bool
}

func newShowCmd(global *globalOptions) *cobra.Command {
	opts := &showOptions{}
	cmd := &cobra.Command{
		Use:   "show --project <id> [--section name] [--html]",
		Short: "Print a project memory document",
		Long: `Show prints the memory document of a project, or a single section of it.
With --html the markdown is rendered to HTML.

Examples:
  researchd show --project acme
  researchd show --project acme --section iam_sdai_scores
  researchd show --project acme --html > acme.html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showProject(cmd.Context(), global, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.project, "project", "", "project id")
	cmd.Flags().StringVar(&opts.section, "section", "", "print only this section")
	cmd.Flags().BoolVar(&opts.html, "html", false, "render as HTML")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func showProject(ctx context.Context, global *globalOptions, opts *showOptions, out io.Writer) error {
	a, err := loadApp(ctx, global)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	store, err := a.store()
	if err != nil {
		return err
	}
	mem, err := store.Get(opts.project)
	if err != nil {
		return err
	}

	var text string
	if opts.section != "" {
		text, err = mem.ReadSectionStrict(opts.section)
	} else {
		text, err = mem.ReadAll()
	}
	if err != nil {
		return err
	}

	if opts.html {
		if text, err = httpapi.RenderHTML(text); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(out, text)
	return err
}
