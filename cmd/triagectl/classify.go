package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dromeas/triage/internal/ai"
	"github.com/dromeas/triage/internal/config"
	"github.com/dromeas/triage/pkg/models"
)

// newClassifier builds the gateway the classify, consensus and ask commands use.
var newClassifier = func(ctx context.Context) (ai.Classifier, error) {
	return ai.NewGatewayFromConfig(ctx, config.LoadAI())
}

type emailFlags struct {
	sender   string
	subject  string
	body     string
	bodyFile string
	provider string
}

func (f *emailFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sender, "sender", "", "sender address")
	cmd.Flags().StringVar(&f.subject, "subject", "", "subject line")
	cmd.Flags().StringVar(&f.body, "body", "", "message body")
	cmd.Flags().StringVar(&f.bodyFile, "body-file", "", "read the message body from a file (- for stdin)")
	cmd.Flags().StringVar(&f.provider, "provider", "", "preferred provider (claude, gpt, gemini)")
}

func (f *emailFlags) request(stdin io.Reader) (models.ClassificationRequest, error) {
	body := f.body
	if f.bodyFile != "" {
		if body != "" {
			return models.ClassificationRequest{}, errors.New("--body and --body-file are mutually exclusive")
		}
		var (
			b   []byte
			err error
		)
		if f.bodyFile == "-" {
			b, err = io.ReadAll(stdin)
		} else {
			b, err = os.ReadFile(f.bodyFile)
		}
		if err != nil {
			return models.ClassificationRequest{}, fmt.Errorf("read body: %w", err)
		}
		body = string(b)
	}

	if strings.TrimSpace(f.subject) == "" && strings.TrimSpace(body) == "" {
		return models.ClassificationRequest{}, errors.New("--subject or a body is required")
	}

	provider := models.ProviderID(f.provider)
	if provider != "" && !provider.Valid() {
		return models.ClassificationRequest{}, fmt.Errorf("unknown provider %q: use claude, gpt or gemini", f.provider)
	}

	return models.ClassificationRequest{
		Sender:            f.sender,
		Subject:           f.subject,
		Body:              body,
		PreferredProvider: provider,
	}, nil
}

func classifyCmd() *cobra.Command {
	var flags emailFlags

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify one email with provider fallback",
		Example: `  triagectl classify --sender accounts@supplier.gr --subject "Invoice overdue" --body "Please settle €25,000"
  cat message.txt | triagectl classify --subject "Quote" --body-file -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.request(cmd.InOrStdin())
			if err != nil {
				return err
			}
			c, err := newClassifier(cmd.Context())
			if err != nil {
				return fmt.Errorf("create ai gateway: %w", err)
			}

			res, err := c.Classify(cmd.Context(), req)
			if err != nil {
				slog.Warn("no provider produced a classification, printing the default", "error", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	flags.register(cmd)
	return cmd
}

func consensusCmd() *cobra.Command {
	var flags emailFlags

	cmd := &cobra.Command{
		Use:   "consensus",
		Short: "Classify one email with every configured provider and merge the answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.request(cmd.InOrStdin())
			if err != nil {
				return err
			}
			c, err := newClassifier(cmd.Context())
			if err != nil {
				return fmt.Errorf("create ai gateway: %w", err)
			}

			res, err := c.ClassifyWithConsensus(cmd.Context(), req)
			if err != nil {
				slog.Warn("no provider produced a classification, printing the default", "error", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	flags.register(cmd)
	return cmd
}

func askCmd() *cobra.Command {
	var (
		flags    emailFlags
		question string
	)

	cmd := &cobra.Command{
		Use:     "ask",
		Short:   "Ask a question about one email",
		Example: `  triagectl ask --question "What is the delivery date?" --subject "D33 order" --body-file order.txt`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(question) == "" {
				return errors.New("--question is required")
			}
			req, err := flags.request(cmd.InOrStdin())
			if err != nil {
				return err
			}
			c, err := newClassifier(cmd.Context())
			if err != nil {
				return fmt.Errorf("create ai gateway: %w", err)
			}

			email := models.EmailContext{Sender: req.Sender, Subject: req.Subject, Body: req.Body}
			answer := c.Ask(cmd.Context(), strings.TrimSpace(question), email, req.PreferredProvider)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), answer)
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&question, "question", "q", "", "question to ask")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
