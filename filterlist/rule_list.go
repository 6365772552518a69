// Package filterlist contains the sources of filtering rules and the storage
// that turns them into network filters.
package filterlist

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// RuleList is a source of filtering rules.
type RuleList interface {
	// GetID returns the rule list identifier.
	GetID() (id int)

	// NewScanner returns a new scanner over the list contents.  Several
	// scanners of one list may be used concurrently.
	NewScanner() (sc *RuleScanner)

	io.Closer
}

// StringRuleList is a rule list kept in memory.
type StringRuleList struct {
	// RulesText contains the rules, one per line.
	RulesText string

	// ID is the rule list identifier.
	ID int

	// KeepRawText, if true, makes the filters keep their rule text.
	KeepRawText bool
}

// type check
var _ RuleList = (*StringRuleList)(nil)

// GetID implements the [RuleList] interface for *StringRuleList.
func (l *StringRuleList) GetID() (id int) {
	return l.ID
}

// NewScanner implements the [RuleList] interface for *StringRuleList.
func (l *StringRuleList) NewScanner() (sc *RuleScanner) {
	return NewRuleScanner(strings.NewReader(l.RulesText), l.ID, l.KeepRawText)
}

// Close implements the [RuleList] interface for *StringRuleList.
func (l *StringRuleList) Close() (err error) {
	return nil
}

// FileRuleList is a rule list read from a file.
type FileRuleList struct {
	file        *os.File
	size        int64
	id          int
	keepRawText bool
}

// type check
var _ RuleList = (*FileRuleList)(nil)

// NewFileRuleList opens the rule list file at path.  The file is kept open
// until l is closed.
func NewFileRuleList(id int, path string, keepRawText bool) (l *FileRuleList, err error) {
	// #nosec G304 -- Trust the file path given by the caller.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rule list: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("rule list %q: %w", path, errors.Join(err, f.Close()))
	}

	return &FileRuleList{
		file:        f,
		size:        fi.Size(),
		id:          id,
		keepRawText: keepRawText,
	}, nil
}

// GetID implements the [RuleList] interface for *FileRuleList.
func (l *FileRuleList) GetID() (id int) {
	return l.id
}

// NewScanner implements the [RuleList] interface for *FileRuleList.
func (l *FileRuleList) NewScanner() (sc *RuleScanner) {
	r := io.NewSectionReader(l.file, 0, l.size)

	return NewRuleScanner(r, l.id, l.keepRawText)
}

// Close implements the [RuleList] interface for *FileRuleList.
func (l *FileRuleList) Close() (err error) {
	return l.file.Close()
}
