package verifycmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"refcheck/src/cmd/refcheck/cmdutil"
	"refcheck/src/internal/config"
	"refcheck/src/internal/crossref"
	"refcheck/src/internal/pubmed"
	"refcheck/src/internal/schema"
	"refcheck/src/internal/validate"
)

type validator interface {
	Validate(ctx context.Context, c schema.RawExtraction) (validate.Outcome, error)
}

var newValidator = func(cfg *config.Config, logger *zap.Logger) validator {
	return validate.New(validate.Options{
		CrossRef: crossref.New(nil),
		PubMed:   pubmed.New(nil, cfg.Validation.PubMedAPIKey),
		Contact:  cfg.ContactEmail,
		Logger:   logger,
	})
}

// result is the machine-readable form printed by --format yaml|json.
type result struct {
	Citation   schema.RawExtraction `yaml:"citation" json:"citation"`
	Status     schema.Status        `yaml:"status" json:"status"`
	Message    string               `yaml:"message,omitempty" json:"message,omitempty"`
	Validation *schema.Validation   `yaml:"validation,omitempty" json:"validation,omitempty"`
}

// New returns the verify command which checks a single citation given on
// the command line against CrossRef and PubMed.
func New() *cobra.Command {
	var c schema.RawExtraction
	var authors []string
	var year, pmid, volume, issue, pages, format string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check one citation against CrossRef and PubMed and print the verdict",
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Authors = schema.Authors(authors)
			c.Year = schema.FlexString(year)
			c.PMID = schema.FlexString(pmid)
			c.Volume = schema.FlexString(volume)
			c.Issue = schema.FlexString(issue)
			c.Pages = schema.FlexString(pages)
			c.Clean()
			if c.DOI == "" && c.PMID == "" && c.Title == "" && c.RawText == "" {
				return fmt.Errorf("one of --doi, --pmid, --title or --raw is required")
			}
			cfg, logger, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if f := cmd.Flag("contact"); f != nil && f.Changed {
				cfg.ContactEmail = f.Value.String()
			}
			out, err := newValidator(cfg, logger).Validate(cmd.Context(), c)
			if err != nil {
				return err
			}
			res := result{Citation: c, Status: out.Status, Message: out.Message, Validation: out.Validation}
			switch strings.ToLower(format) {
			case "yaml":
				b, err := yaml.Marshal(res)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			case "", "text":
				renderText(cmd, res)
				return nil
			}
			return fmt.Errorf("unknown format %q", format)
		},
	}
	f := cmd.Flags()
	f.StringVar(&c.Title, "title", "", "Article title")
	f.StringArrayVar(&authors, "author", nil, "Author name (repeatable, first author first)")
	f.StringVar(&year, "year", "", "Publication year")
	f.StringVar(&c.ContainerTitle, "journal", "", "Journal or container title")
	f.StringVar(&volume, "volume", "", "Volume")
	f.StringVar(&issue, "issue", "", "Issue")
	f.StringVar(&pages, "pages", "", "Page range")
	f.StringVar(&c.DOI, "doi", "", "DOI")
	f.StringVar(&pmid, "pmid", "", "PubMed id")
	f.StringVar(&c.RawText, "raw", "", "Citation text as it appears in the document")
	f.StringVar(&format, "format", "text", "Output format: text, yaml or json")
	f.String("contact", "", "Contact email sent to CrossRef and PubMed")
	return cmd
}

func renderText(cmd *cobra.Command, res result) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "status: %s\n", res.Status)
	if res.Message != "" {
		fmt.Fprintf(w, "message: %s\n", res.Message)
	}
	v := res.Validation
	if v == nil {
		return
	}
	if len(v.Lookups) > 0 {
		fmt.Fprintf(w, "lookups: %s\n", strings.Join(v.Lookups, ", "))
	}
	if v.LastError != "" {
		fmt.Fprintf(w, "last error: %s\n", v.LastError)
	}
	for _, rec := range []*schema.Record{v.CrossRef, v.PubMed} {
		if rec == nil {
			continue
		}
		fmt.Fprintf(w, "%s: %s (%d) doi=%s\n", rec.Source, rec.Title, rec.Year, rec.DOI)
	}
	if v.Score == nil {
		return
	}
	fields := make([]string, 0, len(v.Score.Fields))
	for k := range v.Score.Fields {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	rows := make([][]string, 0, len(fields)+1)
	for _, k := range fields {
		rows = append(rows, []string{k, fmt.Sprintf("%.2f", v.Score.Fields[k])})
	}
	rows = append(rows, []string{"overall", fmt.Sprintf("%.2f", v.Score.Overall)})
	fmt.Fprintln(w)
	cmdutil.RenderTable(cmd, []string{"field", "score"}, rows)
}
