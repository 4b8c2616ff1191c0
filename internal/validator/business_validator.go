package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/classroom-connect/quiz-service/internal/models"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateQuizCreate validates quiz creation business rules
func (bv *BusinessValidator) ValidateQuizCreate(req *QuizCreateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	errors = append(errors, bv.validateQuizRules(req.QuizType, req.TutorialNumber, req.CourseID, req.StartTime, req.EndTime)...)

	for i, q := range req.Questions {
		errors = append(errors, bv.validateQuestionRules(i, &q)...)
	}

	return errors
}

// ValidateQuizUpdate validates quiz update business rules
func (bv *BusinessValidator) ValidateQuizUpdate(req *QuizUpdateRequest, existing *models.Quiz) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if existing.IsEnded {
		errors = append(errors, ValidationError{
			Field:   "quiz",
			Message: "cannot modify an ended quiz",
			Rule:    "business_logic",
		})
	}

	tutorialNumber := existing.TutorialNumber
	if req.TutorialNumber != nil {
		tutorialNumber = req.TutorialNumber
	}
	courseID := existing.CourseID
	if req.CourseID != nil {
		courseID = req.CourseID
	}
	startTime := existing.StartTime
	if req.StartTime != nil {
		startTime = req.StartTime
	}
	endTime := existing.EndTime
	if req.EndTime != nil {
		endTime = req.EndTime
	}
	errors = append(errors, bv.validateQuizRules(existing.QuizType, tutorialNumber, courseID, startTime, endTime)...)

	for i, q := range req.Questions {
		errors = append(errors, bv.validateQuestionRules(i, &q)...)
	}

	return errors
}

// ValidateAttemptStart validates attempt start conditions
func (bv *BusinessValidator) ValidateAttemptStart(quiz *models.Quiz, hasExistingAttempt bool) ValidationErrors {
	var errors ValidationErrors

	if quiz.IsEnded {
		errors = append(errors, ValidationError{
			Field:   "quiz",
			Message: "quiz has ended",
			Rule:    "business_logic",
		})
	}

	now := time.Now()
	if quiz.StartTime != nil && now.Before(*quiz.StartTime) {
		errors = append(errors, ValidationError{
			Field:   "start_time",
			Message: "quiz has not opened yet",
			Value:   quiz.StartTime,
			Rule:    "business_logic",
		})
	}
	if quiz.EndTime != nil && now.After(*quiz.EndTime) {
		errors = append(errors, ValidationError{
			Field:   "end_time",
			Message: "quiz window has closed",
			Value:   quiz.EndTime,
			Rule:    "business_logic",
		})
	}

	if hasExistingAttempt && !quiz.AllowRetake {
		errors = append(errors, ValidationError{
			Field:   "attempts",
			Message: "only one attempt is allowed per quiz",
			Rule:    "business_logic",
		})
	}

	return errors
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	registerDomainRules(bv.validate)
}

// registerDomainRules registers the custom tag validators used by the
// request DTOs. Shared by Validator and BusinessValidator so the tags
// resolve identically wherever a DTO is validated.
func registerDomainRules(validate *validator.Validate) {
	validate.RegisterValidation("quiz_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 200
	})

	validate.RegisterValidation("quiz_type", func(fl validator.FieldLevel) bool {
		qt := models.QuizType(fl.Field().String())
		return qt == models.QuizRegular || qt == models.QuizTutorial
	})

	validate.RegisterValidation("passing_score", func(fl validator.FieldLevel) bool {
		score := fl.Field().Float()
		return score >= 0 && score <= 100
	})

	// Time limit in minutes
	validate.RegisterValidation("time_limit", func(fl validator.FieldLevel) bool {
		limit := fl.Field().Int()
		return limit >= 1 && limit <= 300
	})

	validate.RegisterValidation("points_range", func(fl validator.FieldLevel) bool {
		points := fl.Field().Float()
		return points > 0 && points <= 100
	})

	validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		qType := models.QuestionType(fl.Field().String())
		switch qType {
		case models.SingleChoice, models.MultipleChoice, models.TrueFalse, models.FreeText:
			return true
		}
		return false
	})
}

func (bv *BusinessValidator) validateQuizRules(quizType models.QuizType, tutorialNumber *int, courseID *string, startTime, endTime *time.Time) ValidationErrors {
	var errors ValidationErrors

	if quizType == models.QuizTutorial {
		if tutorialNumber == nil {
			errors = append(errors, ValidationError{
				Field:   "tutorial_number",
				Message: "is required for tutorial quizzes",
				Rule:    "business_logic",
			})
		}
		if courseID == nil || strings.TrimSpace(*courseID) == "" {
			errors = append(errors, ValidationError{
				Field:   "course_id",
				Message: "is required for tutorial quizzes",
				Rule:    "business_logic",
			})
		}
	}

	if startTime != nil && endTime != nil && !endTime.After(*startTime) {
		errors = append(errors, ValidationError{
			Field:   "end_time",
			Message: "must be after start_time",
			Value:   endTime,
			Rule:    "business_logic",
		})
	}

	return errors
}

func (bv *BusinessValidator) validateQuestionRules(index int, q *QuestionCreateRequest) ValidationErrors {
	var errors ValidationErrors
	field := func(name string) string {
		return fmt.Sprintf("questions[%d].%s", index, name)
	}

	switch q.Type {
	case models.SingleChoice:
		if len(q.Choices) < 2 {
			errors = append(errors, ValidationError{
				Field:   field("choices"),
				Message: "single choice questions need at least two choices",
				Value:   len(q.Choices),
				Rule:    "business_logic",
			})
		}
		if countCorrect(q.Choices) != 1 {
			errors = append(errors, ValidationError{
				Field:   field("choices"),
				Message: "single choice questions need exactly one correct choice",
				Rule:    "business_logic",
			})
		}
	case models.MultipleChoice:
		if len(q.Choices) < 2 {
			errors = append(errors, ValidationError{
				Field:   field("choices"),
				Message: "multiple choice questions need at least two choices",
				Value:   len(q.Choices),
				Rule:    "business_logic",
			})
		}
		if countCorrect(q.Choices) == 0 {
			errors = append(errors, ValidationError{
				Field:   field("choices"),
				Message: "multiple choice questions need at least one correct choice",
				Rule:    "business_logic",
			})
		}
	case models.TrueFalse:
		// Legacy true/false questions may carry no choice rows and grade
		// against correct_answer instead.
		if len(q.Choices) == 0 {
			if q.CorrectAnswer == nil {
				errors = append(errors, ValidationError{
					Field:   field("correct_answer"),
					Message: "true/false questions without choices need a correct_answer",
					Rule:    "business_logic",
				})
			}
			break
		}
		if len(q.Choices) != 2 {
			errors = append(errors, ValidationError{
				Field:   field("choices"),
				Message: "true/false questions need exactly two choices",
				Value:   len(q.Choices),
				Rule:    "business_logic",
			})
		}
		if countCorrect(q.Choices) != 1 {
			errors = append(errors, ValidationError{
				Field:   field("choices"),
				Message: "true/false questions need exactly one correct choice",
				Rule:    "business_logic",
			})
		}
	case models.FreeText:
		if len(q.Choices) > 0 {
			errors = append(errors, ValidationError{
				Field:   field("choices"),
				Message: "text questions cannot have choices",
				Value:   len(q.Choices),
				Rule:    "business_logic",
			})
		}
	}

	return errors
}

func countCorrect(choices []ChoiceCreateRequest) int {
	count := 0
	for _, c := range choices {
		if c.IsCorrect {
			count++
		}
	}
	return count
}
