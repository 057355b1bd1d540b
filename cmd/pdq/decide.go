package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-pdq/pkg/dataio"
	"github.com/askiada/go-pdq/pkg/detect"
	"github.com/askiada/go-pdq/pkg/pipeline"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

var (
	errNoAnswer        = errors.New("no answer")
	errUnknownDecision = errors.New("unknown decision")
)

// deciderFor returns the decider of mode, or nil when paused runs are saved for later.
func deciderFor(mode string, in io.Reader, out io.Writer) (pipeline.Decider, error) {
	switch mode {
	case "", "save":
		return nil, nil
	case "apply":
		return pipeline.DeciderFunc(func(_ context.Context, _ model.NodeInfo, candidates []detect.Candidate) (pipeline.Decision, error) {
			return pipeline.ApplyAll(candidates)
		}), nil
	case "discard":
		return pipeline.DeciderFunc(func(context.Context, model.NodeInfo, []detect.Candidate) (pipeline.Decision, error) {
			return pipeline.Discard(), nil
		}), nil
	case "prompt":
		return &promptDecider{in: bufio.NewScanner(in), out: out}, nil
	default:
		return nil, errors.Wrapf(errUnknownDecision, "decide mode %q", mode)
	}
}

// promptDecider asks on out and reads the answer from in.
type promptDecider struct {
	in  *bufio.Scanner
	out io.Writer
}

func (p *promptDecider) Decide(ctx context.Context, node model.NodeInfo, candidates []detect.Candidate) (pipeline.Decision, error) {
	fmt.Fprintf(p.out, "Node %s found %d candidate(s):\n%s\n", node.ID, len(candidates), dataio.RenderCandidates(candidates, dataio.ASCII))
	for {
		if err := ctx.Err(); err != nil {
			return pipeline.Decision{}, err
		}
		fmt.Fprint(p.out, "Apply all [a], discard [d] or apply some [1,3]: ")
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return pipeline.Decision{}, errors.Wrap(err, "unable to read answer")
			}

			return pipeline.Decision{}, errNoAnswer
		}
		decision, err := parseAnswer(p.in.Text(), candidates)
		if err == nil {
			return decision, nil
		}
		fmt.Fprintln(p.out, err)
	}
}

// parseAnswer reads "a", "d" or a comma separated list of 1-based candidate numbers.
func parseAnswer(answer string, candidates []detect.Candidate) (pipeline.Decision, error) {
	answer = strings.ToLower(strings.TrimSpace(answer))
	switch answer {
	case "a", "apply":
		return pipeline.ApplyAll(candidates)
	case "d", "discard":
		return pipeline.Discard(), nil
	}

	selected := []detect.Candidate{}
	for _, field := range strings.Split(answer, ",") {
		num, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || num < 1 || num > len(candidates) {
			return pipeline.Decision{}, errors.Wrapf(errUnknownDecision, "%q", field)
		}
		selected = append(selected, candidates[num-1])
	}

	return pipeline.ApplyAll(selected)
}

// parseDecision builds the decision given on the command line. An apply
// decision without mapping accepts every candidate.
func parseDecision(kind string, mappings []string, candidates []detect.Candidate) (pipeline.Decision, error) {
	switch kind {
	case "discard":
		if len(mappings) > 0 {
			return pipeline.Decision{}, errors.Wrap(errUnknownDecision, "discard takes no mapping")
		}

		return pipeline.Discard(), nil
	case "apply":
		if len(mappings) == 0 {
			return pipeline.ApplyAll(candidates)
		}
		resolutions, err := parseMappings(mappings)
		if err != nil {
			return pipeline.Decision{}, err
		}

		return pipeline.Apply(resolutions), nil
	default:
		return pipeline.Decision{}, errors.Wrapf(errUnknownDecision, "%q", kind)
	}
}

// parseMappings reads "original=replacement" pairs.
func parseMappings(mappings []string) (map[string]string, error) {
	res := make(map[string]string, len(mappings))
	for _, m := range mappings {
		original, replacement, ok := strings.Cut(m, "=")
		if !ok || original == "" {
			return nil, errors.Wrapf(errUnknownDecision, "mapping %q is not original=replacement", m)
		}
		res[original] = replacement
	}

	return res, nil
}
