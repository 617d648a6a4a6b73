package gallery

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/imgbed/internal/apperr"
)

// segment rejects anything that is not a single path component.
var segment = validation.By(func(value any) error {
	s, _ := value.(string)
	switch {
	case s == "." || s == "..":
		return errors.New("must not be a relative directory reference")
	case strings.ContainsAny(s, "/\\\x00"):
		return errors.New("must not contain path separators")
	}
	return nil
})

var categoryRules = []validation.Rule{
	validation.Required,
	validation.Length(1, 255),
	segment,
	validation.By(func(value any) error {
		s, _ := value.(string)
		if strings.HasPrefix(s, ".") {
			return errors.New("must not start with a dot")
		}
		if strings.TrimSpace(s) != s {
			return errors.New("must not start or end with whitespace")
		}
		return nil
	}),
}

// ValidateCategory reports whether name is usable as a category directory.
func ValidateCategory(name string) error {
	if err := validation.Validate(name, categoryRules...); err != nil {
		return fmt.Errorf("%w: category %q %v", apperr.ErrInvalidName, name, err)
	}
	return nil
}

// ValidateFilename reports whether name is a plain file name inside a category.
func ValidateFilename(name string) error {
	if err := validation.Validate(name, validation.Required, segment); err != nil {
		return fmt.Errorf("%w: file %q %v", apperr.ErrInvalidName, name, err)
	}
	return nil
}

// IsAssetName reports whether name is a file the store manages: it carries
// ext and is not hidden. Hidden names include in-flight temp files.
func IsAssetName(name, ext string) bool {
	return len(name) > len(ext) && strings.HasSuffix(name, ext) && !strings.HasPrefix(name, ".")
}
