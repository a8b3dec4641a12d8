package main

import (
	"fmt"
	"strings"

	"github.com/BranchIntl/postqueue/connector"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var link string

	cmd := &cobra.Command{
		Use:   "validate [text...]",
		Short: "Check post content against Facebook's rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			content := connector.PostContent{Text: strings.Join(args, " ")}
			if link != "" {
				content.Link = &connector.Link{URL: link}
			}
			if err := a.facebook.ValidateContent(content); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}

	cmd.Flags().StringVar(&link, "link", "", "attach a link to the post")
	return cmd
}
