package evaluator

import (
	"errors"
	"regexp"
)

// ErrDangerousCode is returned for code matching the denylist.
var ErrDangerousCode = errors.New("Potentially dangerous code detected")

var denylist = []*regexp.Regexp{
	regexp.MustCompile(`require\(`),
	regexp.MustCompile(`import\s*sys`),
	regexp.MustCompile(`__import__`),
	regexp.MustCompile(`eval\(`),
	regexp.MustCompile(`exec\(`),
	regexp.MustCompile(`open\(`),
	regexp.MustCompile(`file\(`),
	regexp.MustCompile(`subprocess`),
	regexp.MustCompile(`os\.`),
}

// CheckDenylist rejects code containing a blocked construct.
func CheckDenylist(code string) error {
	for _, re := range denylist {
		if re.MatchString(code) {
			return ErrDangerousCode
		}
	}
	return nil
}
