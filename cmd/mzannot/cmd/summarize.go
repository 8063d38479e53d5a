package cmd

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/mzannot/pkg/core"
	"github.com/ChrisMcGann/mzannot/pkg/reader/peaklist"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize peak table contents",
	Long:  `Print summary statistics about a peak table including peak count, m/z and retention time ranges, samples and polarity.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return errors.Wrap(err, "failed to open input file")
		}
		defer f.Close()

		s, err := summarize(peaklist.NewReader(f, cfg.PolarityValue()))
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", args[0])
		}
		s.print(cmd.OutOrStdout(), args[0])
		return nil
	},
}

// summary holds peak table statistics
type summary struct {
	peaks        int
	samples      []string
	mzMin, mzMax float64
	rtMin, rtMax float64
	positive     int
	negative     int
	zeroArea     int
}

func summarize(r *peaklist.Reader) (*summary, error) {
	s := &summary{
		mzMin: math.Inf(1), mzMax: math.Inf(-1),
		rtMin: math.Inf(1), rtMax: math.Inf(-1),
	}
	for r.Next() {
		p := r.Peak()
		s.peaks++
		s.mzMin, s.mzMax = math.Min(s.mzMin, p.MZ), math.Max(s.mzMax, p.MZ)
		s.rtMin, s.rtMax = math.Min(s.rtMin, p.RT), math.Max(s.rtMax, p.RT)
		switch p.Polarity {
		case core.Positive:
			s.positive++
		case core.Negative:
			s.negative++
		}
		if p.Area == 0 {
			s.zeroArea++
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	s.samples = r.Samples()
	return s, nil
}

func (s *summary) print(w io.Writer, name string) {
	fmt.Fprintf(w, "File: %s\n", name)
	fmt.Fprintf(w, "Peaks: %d\n", s.peaks)
	fmt.Fprintf(w, "Samples: %d\n", len(s.samples))
	if s.peaks == 0 {
		return
	}
	fmt.Fprintf(w, "m/z range: %.4f - %.4f\n", s.mzMin, s.mzMax)
	fmt.Fprintf(w, "RT range: %.2f - %.2f\n", s.rtMin, s.rtMax)
	fmt.Fprintf(w, "Polarity: %d positive, %d negative\n", s.positive, s.negative)
	if s.zeroArea > 0 {
		fmt.Fprintf(w, "Zero-area peaks: %d\n", s.zeroArea)
	}
}
