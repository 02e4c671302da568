package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deicod/godtl/runtime"
)

func (a *app) renderCmd() *cobra.Command {
	var contextPath string
	var sets []string
	cmd := &cobra.Command{
		Use:   "render NAME",
		Short: "Render a template from the configured template directories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars := make(map[string]any)
			if contextPath != "" {
				loaded, err := loadContext(contextPath)
				if err != nil {
					return err
				}
				vars = loaded
			}
			for _, kv := range sets {
				key, value, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid --set %q (want KEY=VALUE)", kv)
				}
				vars[key] = value
			}

			tmpl, err := a.env.LoadTemplate(args[0])
			if err == nil {
				err = tmpl.Execute(vars, cmd.OutOrStdout())
			}
			if err != nil {
				if !runtime.IsTemplateNotFound(err) {
					report(cmd.ErrOrStderr(), err, templateSource(a.env, err, args[0]))
				}
				return fmt.Errorf("rendering %s failed", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&contextPath, "context", "", "YAML file with template variables")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Set a string variable as KEY=VALUE (repeatable)")
	return cmd
}
