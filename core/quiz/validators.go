package quiz

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-lms/core"
)

var (
	qTypeTag  = "qtype"
	qTypeText = "must be one of multiple_choice, true_false, multiple_answer or essay"

	qOptionsTag  = "qoptions"
	qOptionsText = "at least 2 options are required"

	qOneCorrectTag  = "qonecorrect"
	qOneCorrectText = "exactly one option must be correct"

	qSomeCorrectTag  = "qsomecorrect"
	qSomeCorrectText = "at least one option must be correct"

	qNoOptionsTag  = "qnooptions"
	qNoOptionsText = "this question type takes no options"

	qAnswerTag  = "qanswer"
	qAnswerText = "the correct answer (true or false) is required"
)

// InitValidators registers the quiz validators & translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(qTypeTag, questionTypeValidation)
	core.RegisterCustomTranslation(validate, translator, qTypeTag, qTypeText)

	validate.RegisterStructValidation(questionStructValidation, NewQuestion{})
	core.RegisterCustomTranslation(validate, translator, qOptionsTag, qOptionsText)
	core.RegisterCustomTranslation(validate, translator, qOneCorrectTag, qOneCorrectText)
	core.RegisterCustomTranslation(validate, translator, qSomeCorrectTag, qSomeCorrectText)
	core.RegisterCustomTranslation(validate, translator, qNoOptionsTag, qNoOptionsText)
	core.RegisterCustomTranslation(validate, translator, qAnswerTag, qAnswerText)
}

func questionTypeValidation(fl validator.FieldLevel) bool {
	typ := fl.Field().String()
	for _, t := range QuestionTypes {
		if typ == t {
			return true
		}
	}
	return false
}

// questionStructValidation checks options against the question type:
// - multiple_choice: 2+ options, exactly 1 correct
// - multiple_answer: 2+ options, 1+ correct
// - true_false: an answer, no options
// - essay: no options
func questionStructValidation(sl validator.StructLevel) {
	nq := sl.Current().Interface().(NewQuestion)

	var correct int
	for _, o := range nq.Options {
		if o.IsCorrect {
			correct++
		}
	}

	switch nq.Type {
	case TypeMultipleChoice, TypeMultipleAnswer:
		if len(nq.Options) < 2 {
			sl.ReportError(nq.Options, "options", "Options", qOptionsTag, "")
			return
		}
		if nq.Type == TypeMultipleChoice && correct != 1 {
			sl.ReportError(nq.Options, "options", "Options", qOneCorrectTag, "")
		} else if correct == 0 {
			sl.ReportError(nq.Options, "options", "Options", qSomeCorrectTag, "")
		}
	case TypeTrueFalse:
		if len(nq.Options) > 0 {
			sl.ReportError(nq.Options, "options", "Options", qNoOptionsTag, "")
		}
		if nq.Answer == nil {
			sl.ReportError(nq.Answer, "answer", "Answer", qAnswerTag, "")
		}
	case TypeEssay:
		if len(nq.Options) > 0 {
			sl.ReportError(nq.Options, "options", "Options", qNoOptionsTag, "")
		}
	}
}
