package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/stream"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/workflow"
)

var ErrWorkflowFailed = errors.New("workflow failed")

type WorkflowOptions struct {
	APIKey         string
	IndexID        string
	VideoID        string
	AnalysisPrompt string
	ResearchQuery  string
}

// Client consumes the workflow stream. Progress goes to Stderr, the research
// markdown to Stdout.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Stdout  io.Writer
	Stderr  io.Writer
}

func (c *Client) RunWorkflow(ctx context.Context, opts WorkflowOptions) error {
	body, err := json.Marshal(workflow.Request{
		Credential:     opts.APIKey,
		IndexID:        opts.IndexID,
		VideoID:        opts.VideoID,
		AnalysisPrompt: opts.AnalysisPrompt,
		ResearchQuery:  opts.ResearchQuery,
	})
	if err != nil {
		return err
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/api/workflow"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server answered %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return c.consume(resp.Body)
}

func (c *Client) consume(r io.Reader) error {
	var (
		decoder     = stream.NewDecoder(r, true)
		reassembler stream.Reassembler
	)

	for {
		event, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			return errors.New("stream ended before the workflow completed")
		}

		if err != nil {
			return err
		}

		switch event.Type {
		case stream.TypeProgress:
			fmt.Fprintf(c.stderr(), "[%3d%%] %s\n", event.ProgressValue(), event.Message)

		case stream.TypeData:
			fmt.Fprintf(c.stderr(), "[%3d%%] %s done\n", event.ProgressValue(), event.Step)

		case stream.TypeResearchChunk:
			chunk, err := event.Chunk()
			if err != nil {
				return err
			}

			if err := reassembler.Add(chunk); err != nil {
				return err
			}

		case stream.TypeError:
			if event.Step != "" {
				return fmt.Errorf("%w at %s: %s", ErrWorkflowFailed, event.Step, event.Message)
			}

			return fmt.Errorf("%w: %s", ErrWorkflowFailed, event.Message)

		case stream.TypeComplete:
			return c.complete(event, &reassembler)
		}
	}
}

func (c *Client) complete(event stream.Event, reassembler *stream.Reassembler) error {
	var payload workflow.FinalPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("failed to decode final payload: %w", err)
	}

	research := payload.Research.Content()

	if reassembler.Started() {
		text, err := reassembler.Text()
		if err != nil {
			return err
		}

		research = text
	}

	fmt.Fprintln(c.Stdout, research)

	if len(payload.Sources) > 0 {
		fmt.Fprintln(c.Stdout, "\n## Sources")

		for _, source := range payload.Sources {
			fmt.Fprintf(c.Stdout, "- [%s](%s)\n", source.Title, source.URL)
		}
	}

	return nil
}

func (c *Client) stderr() io.Writer {
	if c.Stderr == nil {
		return os.Stderr
	}

	return c.Stderr
}
