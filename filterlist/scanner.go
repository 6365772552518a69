package filterlist

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/AdguardTeam/flatfilter/rules"
	"github.com/AdguardTeam/golibs/errors"
)

// readerBufSize is the size of the buffer of a [RuleScanner].
const readerBufSize = 64 * 1024

// RuleScanner reads network filters from a rule list.  Comments, cosmetic
// rules, and empty lines are skipped.  Lines which cannot be parsed are
// skipped as well, see [RuleScanner.Invalid] and [RuleScanner.LastInvalid].
type RuleScanner struct {
	reader *bufio.Reader

	// err is the I/O error which stopped the scanning, if any.
	err error

	// lastInvalid is the parsing error of the last invalid line.
	lastInvalid error

	// currentRule is the last scanned filter.
	currentRule *rules.NetworkFilter

	// listID is the ID of the scanned list.
	listID int

	// currentPos is the position of the next line in the list.
	currentPos int

	// currentIdx is the position of the line of currentRule.
	currentIdx int

	// lineNum is the number of lines read so far.
	lineNum uint64

	// invalid is the number of lines which could not be parsed.
	invalid int

	// keepRawText makes the filters keep their rule text.
	keepRawText bool
}

// NewRuleScanner returns a new scanner reading rules from r.  The ID of each
// scanned filter is its zero-based line number in the list.
func NewRuleScanner(r io.Reader, listID int, keepRawText bool) (s *RuleScanner) {
	return &RuleScanner{
		reader:      bufio.NewReaderSize(r, readerBufSize),
		listID:      listID,
		keepRawText: keepRawText,
	}
}

// Scan advances the scanner to the next network filter, which will then be
// available through [RuleScanner.Rule].  It returns false when the scan stops,
// either by reaching the end of the input or an error.
func (s *RuleScanner) Scan() (ok bool) {
	if s.err != nil {
		return false
	}

	for {
		line, lineIdx, lineNum, err := s.readLine()
		if line != "" {
			f, parseErr := rules.NewNetworkFilter(line, lineNum, s.keepRawText)
			if parseErr != nil {
				s.invalid++
				s.lastInvalid = fmt.Errorf("list %d: line %d: %w", s.listID, lineNum+1, parseErr)
			} else if f != nil {
				// If err is not nil, the next call stops the scan.
				s.currentRule, s.currentIdx, s.err = f, lineIdx, err

				return true
			}
		}

		if err != nil {
			s.err = err
			s.currentRule = nil

			return false
		}
	}
}

// readLine reads the next line.  lineIdx is the byte offset of the line in the
// list.  err is io.EOF if this is the last line.
func (s *RuleScanner) readLine() (line string, lineIdx int, lineNum uint64, err error) {
	line, err = s.reader.ReadString('\n')
	lineIdx, lineNum = s.currentPos, s.lineNum

	s.currentPos += len(line)
	s.lineNum++

	return strings.TrimSpace(line), lineIdx, lineNum, err
}

// Rule returns the last scanned filter and the byte offset of its line in the
// list.
func (s *RuleScanner) Rule() (f *rules.NetworkFilter, idx int) {
	return s.currentRule, s.currentIdx
}

// Err returns the first non-EOF error encountered by the scanner.
func (s *RuleScanner) Err() (err error) {
	return ignoreEOF(s.err)
}

// Invalid returns the number of lines which could not be parsed so far.
func (s *RuleScanner) Invalid() (n int) {
	return s.invalid
}

// LastInvalid returns the parsing error of the last invalid line, if any.
func (s *RuleScanner) LastInvalid() (err error) {
	return s.lastInvalid
}

// ignoreEOF returns nil if err is io.EOF.
func ignoreEOF(err error) (res error) {
	if errors.Is(err, io.EOF) {
		return nil
	}

	return err
}
