package extract

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/RAHUL-DevelopeRR/QP/internal/exam"
	"github.com/RAHUL-DevelopeRR/QP/internal/model"
)

var (
	setupOnce sync.Once
	validate  *validator.Validate
	trans     ut.Translator
)

func setup() {
	setupOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their JSON names, as the generation service sees them.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(validate, trans)
	})
}

// SchemaError lists every schema rule a record breaks.
type SchemaError struct {
	Errors []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// Validate checks v against its struct tags and returns a *SchemaError with
// one translated message per failed field.
func Validate(v any) error {
	return validateStruct(v)
}

func validateStruct(v any) error {
	setup()
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msg := fe.Translate(trans)
		// Namespace is "Type.field[0].sub"; keep the path below the root type.
		if _, path, ok := strings.Cut(fe.Namespace(), "."); ok && path != fe.Field() {
			msg = path + ": " + msg
		}
		msgs = append(msgs, msg)
	}
	return &SchemaError{Errors: msgs}
}

// BankResult is a screened question bank.
type BankResult struct {
	Questions  []model.Question
	Rejections []model.Rejection
}

// Bank parses a question bank reply and screens every record against the schema
// and the exam configuration. Offending records are dropped and reported, never
// coerced. If no record survives, Bank fails with a *DataFormatError.
func Bank(text string, cfg exam.Config) (*BankResult, error) {
	qs, err := Questions(text)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, &DataFormatError{Stage: "question bank", Raw: text, Err: errors.New("no questions in reply")}
	}

	res := &BankResult{}
	seen := make(map[string]bool, len(qs))
	for i, q := range qs {
		if reasons := screen(q, cfg, seen); len(reasons) > 0 {
			res.Rejections = append(res.Rejections, model.Rejection{Index: i, ID: q.ID, Reasons: reasons})
			continue
		}
		seen[q.ID] = true
		res.Questions = append(res.Questions, q)
	}

	if len(res.Questions) == 0 {
		return nil, &DataFormatError{
			Stage: "question bank",
			Raw:   text,
			Err:   fmt.Errorf("all %d records rejected", len(qs)),
		}
	}
	return res, nil
}

func screen(q model.Question, cfg exam.Config, seen map[string]bool) []string {
	if err := validateStruct(q); err != nil {
		var se *SchemaError
		if errors.As(err, &se) {
			return se.Errors
		}
		return []string{err.Error()}
	}
	if seen[q.ID] {
		return []string{fmt.Sprintf("duplicate id %q", q.ID)}
	}
	if err := cfg.Allows(q); err != nil {
		var ve *exam.ViolationError
		if errors.As(err, &ve) {
			return ve.Reasons
		}
		return []string{err.Error()}
	}
	return nil
}
