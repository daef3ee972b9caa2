package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gocarina/gocsv"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/segeval/internal/scoring"
)

type CandidateRow struct {
	Position             int     `csv:"position" json:"position"`
	Candidate            string  `csv:"candidate" json:"candidate"`
	Score                float64 `csv:"score" json:"score"`
	BestReference        string  `csv:"best-reference" json:"best_reference"`
	ReferenceToCandidate float64 `csv:"reference-to-candidate" json:"reference_to_candidate"`
	CandidateToReference float64 `csv:"candidate-to-reference" json:"candidate_to_reference"`
}

type Summary struct {
	Params     scoring.MatchParams `json:"params"`
	Candidates []CandidateRow      `json:"candidates"`
	Aggregate  float64             `json:"aggregate"`
}

func Rows(result *scoring.EvaluationResult) []CandidateRow {
	rows := make([]CandidateRow, len(result.Candidates))
	for i, c := range result.Candidates {
		rows[i] = CandidateRow{
			Position:             c.Position,
			Candidate:            c.Candidate,
			Score:                c.Score,
			BestReference:        c.BestReferenceName,
			ReferenceToCandidate: c.ReferenceToCandidate,
			CandidateToReference: c.CandidateToReference,
		}
	}
	return rows
}

func NewSummary(result *scoring.EvaluationResult, params scoring.MatchParams) Summary {
	return Summary{
		Params:     params,
		Candidates: Rows(result),
		Aggregate:  result.Aggregate,
	}
}

// WriteCSV writes one row per candidate.
func WriteCSV(path string, result *scoring.EvaluationResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv report: %w", err)
	}

	rows := Rows(result)
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write csv report: %w", err)
	}

	log.Debug().Str("path", path).Int("rows", len(rows)).Msg("csv report written")
	return f.Close()
}

// WriteJSON writes the summary as JSON, zstd-compressed when path ends in .zst.
func WriteJSON(path string, summary Summary) error {
	data, err := sonic.ConfigStd.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json report: %w", err)
	}

	if isZstd(path) {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
		compressed := encoder.EncodeAll(data, nil)
		_ = encoder.Close()

		log.Debug().
			Int("original_size", len(data)).
			Int("compressed_size", len(compressed)).
			Msg("json report compressed")
		data = compressed
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json report: %w", err)
	}
	return nil
}

// ReadJSON reads a summary written by WriteJSON.
func ReadJSON(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("read json report: %w", err)
	}

	if isZstd(path) {
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return Summary{}, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer decoder.Close()

		data, err = decoder.DecodeAll(data, nil)
		if err != nil {
			return Summary{}, fmt.Errorf("decompress json report: %w", err)
		}
	}

	var summary Summary
	if err := sonic.Unmarshal(data, &summary); err != nil {
		return Summary{}, fmt.Errorf("unmarshal json report: %w", err)
	}
	return summary, nil
}

func isZstd(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zst")
}
