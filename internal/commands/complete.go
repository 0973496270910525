package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	intlambda "github.com/dwsmith1983/clearmail/internal/lambda"
	"github.com/dwsmith1983/clearmail/internal/llm"
	"github.com/dwsmith1983/clearmail/internal/sanitize"
)

// NewCompleteCmd creates the complete command.
func NewCompleteCmd(opts *Options) *cobra.Command {
	var (
		system string
		model  string
	)
	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Send one prompt through the retry executor",
		Long:  "Sends the prompt (argument or stdin) to the configured chat completions API with retries and prints the sanitized reply.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			rt, err := setup(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			if rt.cfg.LLM == nil {
				return fmt.Errorf("llm section missing from %s", opts.ConfigPath)
			}
			apiKey, err := intlambda.ResolveAPIKey(cmd.Context(), nil, rt.cfg.LLM)
			if err != nil {
				return err
			}
			if apiKey == "" {
				return fmt.Errorf("no API key: set %s", rt.cfg.LLM.APIKeyEnv)
			}
			exec := intlambda.NewExecutor(rt.cfg, apiKey, rt.logger, rt.alerts)

			if model == "" {
				model = rt.cfg.LLM.Model
			}
			var messages []llm.Message
			if system != "" {
				messages = append(messages, llm.Message{Role: "system", Content: system})
			}
			messages = append(messages, llm.Message{Role: "user", Content: prompt})

			text, err := exec.Execute(cmd.Context(), llm.ChatRequest{Model: model, Messages: messages})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sanitize.Sanitize(text))
			return err
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "System prompt")
	cmd.Flags().StringVar(&model, "model", "", "Model override")
	return cmd
}

func readPrompt(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if f, ok := stdin.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			return "", fmt.Errorf("a prompt argument or stdin is required")
		}
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt is empty")
	}
	return prompt, nil
}
