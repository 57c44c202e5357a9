package mapdata

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxKeyPrefix bounds the part of an object key before its first slash.
const maxKeyPrefix = 1024

// FieldError describes one invalid value, addressed by its JSON path.
type FieldError struct {
	Path    string
	Problem string
}

func (e *FieldError) Error() string {
	return e.Path + ": " + e.Problem
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("s3key", func(fl validator.FieldLevel) bool {
		return IsValidS3Key(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	v.RegisterStructValidation(validateCatalogue, OfficialMapData{})
	v.RegisterStructValidation(validateSource, Source{})
	v.RegisterStructValidation(validateChapter, Chapter{})
	return v
}

// IsValidS3Key reports whether key is a relative object key with at least one
// folder, no empty segments, no backslashes and no URL scheme.
func IsValidS3Key(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return false
	}
	if strings.Contains(key, "//") || strings.Contains(key, `\`) {
		return false
	}
	slash := strings.Index(key, "/")
	if slash < 1 || slash > maxKeyPrefix {
		return false
	}
	lower := strings.ToLower(key)
	for _, scheme := range []string{"http:", "https:", "s3:", "arn:"} {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	return true
}

// source names are unique regardless of case
func validateCatalogue(sl validator.StructLevel) {
	data := sl.Current().Interface().(OfficialMapData)
	seen := make(map[string]bool, len(data.Sources))
	for i, s := range data.Sources {
		name := strings.ToLower(s.Name)
		if seen[name] {
			sl.ReportError(s.Name, fmt.Sprintf("sources[%d].name", i), "Name", "unique", "")
		}
		seen[name] = true
	}
}

// chapter IDs and orders are unique within a source
func validateSource(sl validator.StructLevel) {
	source := sl.Current().Interface().(Source)
	ids := make(map[string]bool, len(source.Chapters))
	orders := make(map[int]bool, len(source.Chapters))
	for i, c := range source.Chapters {
		if ids[c.ID] {
			sl.ReportError(c.ID, fmt.Sprintf("chapters[%d].id", i), "ID", "unique", "")
		}
		if orders[c.Order] {
			sl.ReportError(c.Order, fmt.Sprintf("chapters[%d].order", i), "Order", "unique", "")
		}
		ids[c.ID] = true
		orders[c.Order] = true
	}
}

// map orders are unique within a chapter
func validateChapter(sl validator.StructLevel) {
	chapter := sl.Current().Interface().(Chapter)
	orders := make(map[int]bool, len(chapter.Maps))
	for i, m := range chapter.Maps {
		if orders[m.Order] {
			sl.ReportError(m.Order, fmt.Sprintf("maps[%d].order", i), "Order", "unique", "")
		}
		orders[m.Order] = true
	}
}

// Validate checks the whole catalogue and returns every problem found.
func Validate(data *OfficialMapData) error {
	return collect(validate.Struct(data))
}

// ValidateSource checks a single source file.
func ValidateSource(source *Source) error {
	return collect(validate.Struct(source))
}

func collect(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, &FieldError{Path: fieldPath(fe), Problem: problem(fe)})
	}
	return errors.Join(errs...)
}

// fieldPath drops the root type name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		return rest
	}
	return path
}

func problem(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must not be empty"
	case "oneof":
		return fmt.Sprintf("%q is not one of: %s", fmt.Sprint(fe.Value()), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "s3key":
		return fmt.Sprintf("%q is not a valid S3 key", fmt.Sprint(fe.Value()))
	case "gt", "lt":
		return fmt.Sprintf("%v must be greater than 0 and less than 1", fe.Value())
	case "unique":
		return fmt.Sprintf("%v is not unique", fe.Value())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
