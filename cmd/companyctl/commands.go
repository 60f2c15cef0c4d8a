package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gartstein/directory/internal/client/api"
	"github.com/gartstein/directory/internal/client/media"
	"github.com/gartstein/directory/internal/client/tui"
	"github.com/gartstein/directory/internal/client/view"
	"github.com/gartstein/directory/internal/company/models"
	"github.com/gartstein/directory/internal/company/query"
	"github.com/gartstein/directory/internal/company/schema"
)

type options struct {
	apiURL  string
	token   string
	verbose bool
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// printNotifier writes API notifications to the terminal.
type printNotifier struct {
	out, errOut io.Writer
}

func (n printNotifier) Success(msg string) { fmt.Fprintln(n.out, msg) }
func (n printNotifier) Error(msg string)   { fmt.Fprintln(n.errOut, "Error:", msg) }

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "companyctl",
		Short:         "Browse and manage the company directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api", envOr("COMPANY_API", "http://localhost:8080"), "base URL of the company API")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("COMPANY_TOKEN"), "bearer token for write operations")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log requests")

	root.AddCommand(
		newListCmd(opts),
		newGetCmd(opts),
		newCreateCmd(opts),
		newUpdateCmd(opts),
		newDeleteCmd(opts),
		newSchemaCmd(opts),
		newUploadCmd(),
		newTUICmd(opts),
	)
	return root
}

func (o *options) client(cmd *cobra.Command) *api.Client {
	logger := zap.NewNop()
	if o.verbose {
		logger, _ = zap.NewDevelopment()
	}
	return api.New(o.apiURL,
		api.WithToken(o.token),
		api.WithLogger(logger),
		api.WithNotifier(printNotifier{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}),
	)
}

func newListCmd(opts *options) *cobra.Command {
	var p query.Params
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List companies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := opts.client(cmd).List(cmd.Context(), p)
			if err != nil {
				return err
			}
			printPage(cmd.OutOrStdout(), page)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.Search, "search", "", "match name, description or address")
	f.StringVar(&p.Industry, "industry", "", "exact industry")
	f.StringVar(&p.Location, "location", "", "exact location")
	f.StringVar(&p.FoundedYear, "founded-year", "", "exact founding year")
	f.StringVar(&p.Page, "page", "", "page number (default 1)")
	f.StringVar(&p.Limit, "limit", "", "page size (default 10)")
	f.StringVar(&p.SortBy, "sort-by", "", "name, foundedYear, totalBranches, totalClients or employeeCount")
	f.StringVar(&p.SortOrder, "sort-order", "", "asc or desc")
	return cmd
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), c)
		},
	}
}

// readCandidate loads the JSON document named by file, or stdin for "-".
func readCandidate(cmd *cobra.Command, file string) (schema.Candidate, error) {
	var r io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var c schema.Candidate
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to read company JSON: %w", err)
	}
	return c, nil
}

// validateLocally runs the form rules so obvious mistakes never reach the
// server.
func validateLocally(cmd *cobra.Command, c schema.Candidate) error {
	_, fe := schema.NewValidator(schema.EnforceOptions()).Normalize(c)
	if len(fe) == 0 {
		return nil
	}
	for _, e := range fe {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", view.Label(e.Field), e.Msg)
	}
	return &api.Error{Message: "Validation failed", Fields: fe, Presented: true}
}

func newCreateCmd(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a company from a JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := readCandidate(cmd, file)
			if err != nil {
				return err
			}
			if err := validateLocally(cmd, c); err != nil {
				return err
			}
			created, err := opts.client(cmd).Create(cmd.Context(), c)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), created)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file, - for stdin")
	return cmd
}

func newUpdateCmd(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a company with a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := readCandidate(cmd, file)
			if err != nil {
				return err
			}
			if err := validateLocally(cmd, c); err != nil {
				return err
			}
			updated, err := opts.client(cmd).Update(cmd.Context(), args[0], c)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), updated)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file, - for stdin")
	return cmd
}

func newDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.client(cmd).Delete(cmd.Context(), args[0])
		},
	}
}

func newSchemaCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the field rules the server validates with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rules, err := opts.client(cmd).Schema(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rules)
		},
	}
}

func newUploadCmd() *cobra.Command {
	var bucket, region string
	cmd := &cobra.Command{
		Use:   "upload <image>",
		Short: "Upload a company image and print its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			up, err := media.NewS3Uploader(cmd.Context(), bucket, region)
			if err != nil {
				return err
			}
			url, err := up.Upload(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", os.Getenv("S3_BUCKET_NAME"), "destination bucket")
	cmd.Flags().StringVar(&region, "region", os.Getenv("AWS_S3_REGION"), "bucket region")
	return cmd
}

func newTUICmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse companies interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := tui.Run(cmd.Context(), opts.apiURL, api.WithToken(opts.token))
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

func printPage(w io.Writer, page *models.Page) {
	if len(page.Companies) == 0 {
		fmt.Fprintln(w, "No companies found.")
		return
	}
	num := func(p *int) string {
		if p == nil {
			return "-"
		}
		return strconv.Itoa(*p)
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", view.Label("name"), view.Label("industry"), view.Label("location"), "Employees", "Founded").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, c := range page.Companies {
		t.Row(c.ID, c.Name, c.Industry, c.Location, num(c.EmployeeCount), num(c.FoundedYear))
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "Page %d of %d (%d companies)\n", page.Page, page.TotalPages, page.Total)
}
