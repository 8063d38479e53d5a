// Package reactions loads metabolic reaction networks used to score
// candidate annotations
package reactions

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/ChrisMcGann/mzannot/pkg/inference"
)

// Load reads a tab-separated network. Each line is
//
//	compound<TAB>reactant,reactant<TAB>product,product
//
// Lines starting with '#' are comments. A compound listed more than once
// accumulates its reactions.
func Load(r io.Reader) (inference.Network, error) {
	network := inference.Network{}
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")

		// Skip comments and empty lines
		if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) > 3 {
			return nil, errors.Newf("line %d: expected at most 3 fields, got %d", lineNum, len(fields))
		}
		compound := strings.TrimSpace(fields[0])
		if compound == "" {
			return nil, errors.Newf("line %d: empty compound id", lineNum)
		}

		var reaction inference.Reaction
		if len(fields) > 1 {
			reaction.Reactants = splitList(fields[1])
		}
		if len(fields) > 2 {
			reaction.Products = splitList(fields[2])
		}
		network.Add(compound, reaction)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading reaction network")
	}
	return network, nil
}

// LoadYAML reads a network written as a mapping of compound id to
// reactants and products.
func LoadYAML(r io.Reader) (inference.Network, error) {
	network := inference.Network{}
	if err := yaml.NewDecoder(r).Decode(&network); err != nil {
		if err == io.EOF {
			return network, nil
		}
		return nil, errors.Wrap(err, "decoding reaction network")
	}
	return network, nil
}

// LoadFile picks the format from the file extension: .yaml and .yml are
// YAML, anything else is tab-separated.
func LoadFile(path string) (inference.Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open reaction network %s", path)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(f)
	default:
		return Load(f)
	}
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
