package objective

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/thalesfsp/hyperopt"
)

// EnvPrefix prefixes the environment variables passed to commands.
const EnvPrefix = "HYPEROPT_"

// Command returns an objective that runs name with args once per trial.
//
// Each parameter is exported as HYPEROPT_<NAME>, upper-cased with dashes
// and dots replaced by underscores, and all of them as JSON in
// HYPEROPT_PARAMS. The last non-empty line of stdout is parsed as the
// loss. A non-zero exit status fails the trial, carrying stderr.
func Command(name string, args ...string) (hyperopt.ObjectiveFunc, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("empty objective command")
	}

	return func(ctx context.Context, params hyperopt.Params) (hyperopt.Result, error) {
		payload, err := json.Marshal(params)
		if err != nil {
			return hyperopt.Result{}, fmt.Errorf("encode params: %w", err)
		}

		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Env = append(os.Environ(), Env(params)...)
		cmd.Env = append(cmd.Env, EnvPrefix+"PARAMS="+string(payload))

		var stdout, stderr bytes.Buffer

		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return hyperopt.Result{}, fmt.Errorf("%s: %w: %s", name, err, msg)
			}

			return hyperopt.Result{}, fmt.Errorf("%s: %w", name, err)
		}

		loss, err := parseLoss(stdout.Bytes())
		if err != nil {
			return hyperopt.Result{}, fmt.Errorf("%s: %w", name, err)
		}

		return hyperopt.Result{Loss: loss}, nil
	}, nil
}

// Env renders params as sorted HYPEROPT_<NAME>=<value> entries.
func Env(params hyperopt.Params) []string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}

	sort.Strings(names)

	env := make([]string, 0, len(names))
	for _, k := range names {
		key := strings.NewReplacer("-", "_", ".", "_").Replace(strings.ToUpper(k))
		env = append(env, EnvPrefix+key+"="+strconv.FormatFloat(params[k], 'g', -1, 64))
	}

	return env
}

// parseLoss reads the last non-empty line of out as a float.
func parseLoss(out []byte) (float64, error) {
	var last string

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			last = line
		}
	}

	if err := sc.Err(); err != nil {
		return 0, err
	}

	if last == "" {
		return 0, errors.New("no loss printed on stdout")
	}

	loss, err := strconv.ParseFloat(last, 64)
	if err != nil {
		return 0, fmt.Errorf("parse loss %q: %w", last, err)
	}

	return loss, nil
}
