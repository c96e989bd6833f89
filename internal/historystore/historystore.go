// Package historystore provides the on-disk support for the editor's history
// file: an advisory file lock so two wrapped sessions sharing a history file
// don't interleave writes, and the decoration-template expansion used when
// the -F/--history-format flag is set.
package historystore

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// Lock is an advisory, cross-process lock held around a history file's
// load-rewrite-append cycle.
type Lock struct {
	fl *flock.Flock
}

// Acquire blocks until it holds an exclusive lock on path+".lock".
func Acquire(path string) (*Lock, error) {
	fl := flock.New(path + ".lock")
	if err := fl.Lock(); err != nil {
		return nil, err
	}
	return &Lock{fl: fl}, nil
}

// Release releases the lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}

// Decorate expands a history-entry decoration template. The recognised
// directives are:
//
//	%D  the working directory the line was entered in
//	%P  the wrapped program's prompt at the time the line was entered
//	%C  the wrapped command's name
//
// and a small subset of strftime conversions (%Y %m %d %H %M %S), applied to
// when. Any other "%x" sequence is passed through unchanged.
func Decorate(format, cwd, promptText, cmdName string, when time.Time) string {
	if format == "" {
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 >= len(format) {
			b.WriteByte(c)
			continue
		}
		i++
		switch format[i] {
		case 'D':
			b.WriteString(cwd)
		case 'P':
			b.WriteString(promptText)
		case 'C':
			b.WriteString(cmdName)
		case 'Y':
			b.WriteString(strconv.Itoa(when.Year()))
		case 'm':
			b.WriteString(pad2(int(when.Month())))
		case 'd':
			b.WriteString(pad2(when.Day()))
		case 'H':
			b.WriteString(pad2(when.Hour()))
		case 'M':
			b.WriteString(pad2(when.Minute()))
		case 'S':
			b.WriteString(pad2(when.Second()))
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(format[i])
		}
	}
	return b.String()
}

func pad2(n int) string {
	s := strconv.Itoa(n)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}
