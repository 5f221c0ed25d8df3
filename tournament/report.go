package tournament

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"arena/engine"
	"arena/rating"
)

// ReportWriter dumps a tournament run to CSV files in a timestamped folder.
type ReportWriter struct {
	baseDir string
}

// NewReportWriter creates the report folder under root, named by the current
// timestamp.
func NewReportWriter(root string) (*ReportWriter, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339)
	baseDir := filepath.Join(root, timestamp)
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	return &ReportWriter{
		baseDir: baseDir,
	}, nil
}

// Dir returns the folder reports are written into.
func (w *ReportWriter) Dir() string {
	return w.baseDir
}

func (w *ReportWriter) WriteMatches(matches []engine.Result) error {
	path := filepath.Join(w.baseDir, "matches.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create matches file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	// Write header
	header := []string{"match_id", "winner", "winner_side", "turns", "duration", "reason"}
	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write matches header: %w", err)
	}

	// Write each row
	for _, match := range matches {
		row := []string{
			match.MatchID,
			match.Winner,
			match.WinnerSide,
			strconv.Itoa(match.Turns),
			match.Duration.String(),
			string(match.Reason),
		}
		err = writer.Write(row)
		if err != nil {
			return fmt.Errorf("failed to write match row: %w", err)
		}
	}

	return nil
}

func (w *ReportWriter) WriteStandings(standings []rating.Standing) error {
	path := filepath.Join(w.baseDir, "standings.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create standings file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	// Write header
	header := []string{"rank", "participant", "rating", "games", "wins", "win_rate"}
	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write standings header: %w", err)
	}

	// Write each row
	for i, standing := range standings {
		row := []string{
			strconv.Itoa(i + 1),
			standing.Participant,
			strconv.FormatFloat(standing.Rating, 'f', 1, 64),
			strconv.Itoa(standing.Games),
			strconv.Itoa(standing.Wins),
			strconv.FormatFloat(standing.WinRate(), 'f', 2, 64),
		}
		err = writer.Write(row)
		if err != nil {
			return fmt.Errorf("failed to write standing row: %w", err)
		}
	}

	return nil
}

func (w *ReportWriter) WriteTurns(matches []engine.Result) error {
	path := filepath.Join(w.baseDir, "turns.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create turns file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	// Write header
	header := []string{"match_id", "turn", "side", "participant", "move", "provenance", "rationale"}
	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write turns header: %w", err)
	}

	// Write each row
	for _, match := range matches {
		for _, record := range match.Log {
			row := []string{
				match.MatchID,
				strconv.Itoa(record.Turn),
				record.Side,
				record.Participant,
				record.Move,
				string(record.Provenance),
				record.Rationale,
			}
			err = writer.Write(row)
			if err != nil {
				return fmt.Errorf("failed to write turn row: %w", err)
			}
		}
	}

	return nil
}
