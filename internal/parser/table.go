package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/enviroscan/logsheet/constants"
	"github.com/enviroscan/logsheet/internal/common"
	"github.com/enviroscan/logsheet/internal/entity"
	"github.com/enviroscan/logsheet/internal/fields"
)

// Hour labels are 4-digit zero-padded on the printed form ("0000".."2300").
var reHourLabel = regexp.MustCompile(`^([01]\d|2[0-3])00$`)

// A value token is digits plus the characters OCR habitually swaps for
// digits, or the missing-cell marker. Tokens like "H2O" stay label tokens.
var reValueToken = regexp.MustCompile(`^-?[0-9OoIl|SBZ]+([.,][0-9OoIl|SBZ]+)?$`)

// minHeaderHours is how many increasing hour labels a line needs before it
// is trusted as the header; data rows rarely contain more than a couple of
// tokens that happen to look like hours.
const minHeaderHours = 3

// Parser splits raw multi-line OCR text into a label x hour-column grid and
// slices out the column for a requested hour. It holds no mutable state.
type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseTable slices out targetHour's column. Returns common.ErrNoHeaderRow
// (wrapped) when no hour-label header can be located, which is the fallback
// handler's cue to escalate instead of parsing garbage.
func (p *Parser) ParseTable(rawText string, targetHour int) (entity.TableSlice, error) {
	lines := strings.Split(rawText, "\n")

	headerIdx, hours := findHeader(lines)
	if headerIdx < 0 {
		return entity.TableSlice{}, fmt.Errorf("parse table: %w", common.ErrNoHeaderRow)
	}

	slice := entity.TableSlice{Hour: targetHour}

	colIdx := -1
	for i, h := range hours {
		if h != targetHour {
			continue
		}
		if colIdx < 0 {
			colIdx = i
			continue
		}
		// ambiguous table; first occurrence wins, validator sees the warning
		slice.Warnings = append(slice.Warnings,
			fmt.Sprintf("duplicate hour %s in header; using first occurrence", constants.FormatHour(targetHour)))
		break
	}
	if colIdx < 0 {
		return entity.TableSlice{}, fmt.Errorf("hour column %s not in header: %w",
			constants.FormatHour(targetHour), common.ErrNoHeaderRow)
	}

	for _, line := range lines[headerIdx+1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		label, values := splitRow(line)
		if label == "" {
			continue // continuation or stray numeric noise, no label to anchor it
		}
		value := fields.MissingCell
		if colIdx < len(values) {
			value = values[colIdx]
		} else {
			slice.Warnings = append(slice.Warnings,
				fmt.Sprintf("row %q has %d of %d columns; padded as missing", label, len(values), len(hours)))
		}
		slice.Rows = append(slice.Rows, entity.TableRow{LabelText: label, ValueText: value})
	}

	p.logger.Debug("parser.table.ok",
		"hour", constants.FormatHour(targetHour),
		"rows", len(slice.Rows),
		"warnings", len(slice.Warnings),
	)
	return slice, nil
}

// Hours returns the hour labels of the table's header row, in column order.
// Used by the fallback handler to know which adjacent columns exist.
func (p *Parser) Hours(rawText string) []int {
	_, hours := findHeader(strings.Split(rawText, "\n"))
	return hours
}

// findHeader locates the first line carrying enough ordered hour labels.
// The ordering requirement keeps data rows whose cells happen to look like
// hours from being mistaken for the header.
func findHeader(lines []string) (int, []int) {
	for i, line := range lines {
		toks := strings.Fields(line)
		var hours []int
		distinct := make(map[int]struct{})
		ordered := true
		for _, t := range toks {
			if !reHourLabel.MatchString(t) {
				continue
			}
			h, err := constants.ParseHour(t)
			if err != nil {
				continue
			}
			// non-decreasing, not strictly increasing: OCR sometimes
			// doubles a header cell and that stays a parseable table
			if n := len(hours); n > 0 && h < hours[n-1] {
				ordered = false
			}
			hours = append(hours, h)
			distinct[h] = struct{}{}
		}
		// distinct hours, so a data row of repeated round values
		// ("2300 2300 2300 ...") is never mistaken for the header
		if ordered && len(distinct) >= minHeaderHours {
			return i, hours
		}
	}
	return -1, nil
}

// splitRow separates a data row into its leading label run and the
// whitespace-delimited value tokens that follow.
func splitRow(line string) (string, []string) {
	toks := strings.Fields(line)
	cut := len(toks)
	for i, t := range toks {
		if isValueToken(t) {
			cut = i
			break
		}
	}
	label := strings.Join(toks[:cut], " ")
	return label, toks[cut:]
}

func isValueToken(t string) bool {
	if t == fields.MissingCell || t == "-" {
		return true
	}
	if !reValueToken.MatchString(t) {
		return false
	}
	return strings.ContainsAny(t, "0123456789")
}
