package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/classroom-connect/quiz-service/internal/answers"
	"github.com/classroom-connect/quiz-service/internal/models"
	"github.com/classroom-connect/quiz-service/internal/repositories"
)

// ===== QUESTION TYPE SPECIFIC GRADING =====

// gradeNormalized applies the grading policy for the question's type to an
// already normalized answer.
func (s *gradingService) gradeNormalized(question *models.Question, norm answers.Normalized) *GradeResult {
	result := &GradeResult{
		QuestionID: question.ID,
		MaxPoints:  question.Points,
	}

	if !norm.Answered {
		result.IsCorrect = boolPtr(false)
		result.Feedback = strPtr("No answer provided.")
		return result
	}

	switch question.Type {
	case models.SingleChoice:
		s.gradeSingleChoice(question, norm, result)
	case models.MultipleChoice:
		s.gradeMultipleChoice(question, norm, result)
	case models.TrueFalse:
		s.gradeTrueFalse(question, norm, result)
	case models.FreeText:
		s.gradeFreeText(question, norm, result)
	default:
		result.IsCorrect = boolPtr(false)
	}

	return result
}

func (s *gradingService) gradeSingleChoice(question *models.Question, norm answers.Normalized, result *GradeResult) {
	correct := false
	if len(norm.ChoiceIDs) == 1 {
		if choice := question.ChoiceByID(norm.ChoiceIDs[0]); choice != nil {
			correct = choice.IsCorrect
		}
	}
	s.finishChoiceResult(question, correct, result)
}

// gradeMultipleChoice is all-or-nothing: the selected set must equal the
// correct set exactly. A question with no correct choices never awards
// points.
func (s *gradingService) gradeMultipleChoice(question *models.Question, norm answers.Normalized, result *GradeResult) {
	correctIDs := question.CorrectChoiceIDs()
	if len(correctIDs) == 0 {
		s.finishChoiceResult(question, false, result)
		return
	}

	correctSet := make(map[uint]bool, len(correctIDs))
	for _, id := range correctIDs {
		correctSet[id] = true
	}

	if len(norm.ChoiceIDs) != len(correctIDs) {
		s.finishChoiceResult(question, false, result)
		return
	}
	for _, id := range norm.ChoiceIDs {
		if !correctSet[id] {
			s.finishChoiceResult(question, false, result)
			return
		}
	}
	s.finishChoiceResult(question, true, result)
}

// gradeTrueFalse reads the is_correct flag of the resolved choice row.
// Choice order carries no meaning: a quiz listing "False" first must grade
// identically to one listing "True" first.
func (s *gradingService) gradeTrueFalse(question *models.Question, norm answers.Normalized, result *GradeResult) {
	if len(norm.ChoiceIDs) == 1 {
		correct := false
		if choice := question.ChoiceByID(norm.ChoiceIDs[0]); choice != nil {
			correct = choice.IsCorrect
		}
		s.finishChoiceResult(question, correct, result)
		return
	}

	// Legacy questions without choice rows compare the boolean literal
	// against the reference answer.
	if norm.Text != "" && question.CorrectAnswer != nil {
		correct := strings.EqualFold(strings.TrimSpace(norm.Text), strings.TrimSpace(*question.CorrectAnswer))
		s.finishChoiceResult(question, correct, result)
		return
	}

	s.finishChoiceResult(question, false, result)
}

// gradeFreeText compares case-insensitively against the reference answer
// when one exists; otherwise the answer is left ungraded for manual review.
func (s *gradingService) gradeFreeText(question *models.Question, norm answers.Normalized, result *GradeResult) {
	if question.CorrectAnswer == nil || strings.TrimSpace(*question.CorrectAnswer) == "" {
		result.IsCorrect = nil
		result.PointsEarned = 0
		result.Feedback = strPtr("Pending manual review.")
		return
	}

	correct := strings.EqualFold(strings.TrimSpace(norm.Text), strings.TrimSpace(*question.CorrectAnswer))
	if correct {
		result.IsCorrect = boolPtr(true)
		result.PointsEarned = question.Points
		result.Feedback = strPtr("Correct answer!")
	} else {
		result.IsCorrect = boolPtr(false)
		result.Feedback = strPtr("Your answer doesn't match the expected response.")
	}
}

func (s *gradingService) finishChoiceResult(question *models.Question, correct bool, result *GradeResult) {
	result.IsCorrect = boolPtr(correct)
	if correct {
		result.PointsEarned = question.Points
		result.Feedback = strPtr("Correct!")
	} else {
		result.Feedback = s.incorrectFeedback(question)
	}
}

func (s *gradingService) incorrectFeedback(question *models.Question) *string {
	correctTexts := make([]string, 0, 2)
	for _, c := range question.Choices {
		if c.IsCorrect {
			correctTexts = append(correctTexts, c.Text)
		}
	}
	if len(correctTexts) == 0 {
		return strPtr("Incorrect answer.")
	}
	if len(correctTexts) == 1 {
		return strPtr(fmt.Sprintf("Incorrect. The correct answer is: %s", correctTexts[0]))
	}
	return strPtr(fmt.Sprintf("Incorrect. The correct answers are: %s", strings.Join(correctTexts, ", ")))
}

// ===== STORED ANSWER RECONSTRUCTION =====

// normalizedFromStored rebuilds the canonical answer from a persisted row
// so completed attempts can be regraded without the original payload.
func normalizedFromStored(answer *models.QuizAnswer) answers.Normalized {
	question := &answer.Question

	switch question.Type {
	case models.SingleChoice, models.MultipleChoice:
		ids := storedChoiceIDs(answer)
		if len(ids) == 0 {
			return answers.Normalized{}
		}
		return answers.Normalized{ChoiceIDs: ids, Answered: true}

	case models.TrueFalse:
		if ids := storedChoiceIDs(answer); len(ids) == 1 {
			return answers.Normalized{ChoiceIDs: ids, Answered: true}
		}
		if answer.BooleanAnswer != nil {
			if *answer.BooleanAnswer {
				return answers.Normalized{Text: "true", Answered: true}
			}
			return answers.Normalized{Text: "false", Answered: true}
		}
		return answers.Normalized{}

	case models.FreeText:
		if answer.TextAnswer == "" {
			return answers.Normalized{}
		}
		return answers.Normalized{Text: answer.TextAnswer, Answered: true}
	}

	return answers.Normalized{}
}

func storedChoiceIDs(answer *models.QuizAnswer) []uint {
	if len(answer.SelectedChoices) == 0 {
		return nil
	}
	var ids []uint
	if err := json.Unmarshal(answer.SelectedChoices, &ids); err != nil {
		return nil
	}
	return ids
}

// ===== ATTEMPT TOTALS =====

// summarizeAttempt recomputes attempt totals from its answers. Pending
// manual grades keep the attempt in pending_review.
func (s *gradingService) summarizeAttempt(attempt *models.QuizAttempt) *AttemptGradeSummary {
	summary := &AttemptGradeSummary{
		AttemptID:      attempt.ID,
		TotalQuestions: len(attempt.Answers),
	}

	for i := range attempt.Answers {
		answer := &attempt.Answers[i]
		summary.TotalPoints += answer.Question.Points
		summary.Score += answer.PointsEarned
		if answer.IsCorrect == nil {
			summary.PendingCount++
		} else if *answer.IsCorrect {
			summary.CorrectCount++
		}
	}

	summary.Percentage = answers.Percentage(summary.Score, summary.TotalPoints)
	summary.Passed = summary.Percentage >= attempt.Quiz.PassingScore
	if summary.PendingCount > 0 {
		summary.Status = models.AttemptPendingReview
	} else {
		summary.Status = models.AttemptGraded
	}

	return summary
}

func applySummary(attempt *models.QuizAttempt, summary *AttemptGradeSummary) {
	attempt.Score = summary.Score
	attempt.TotalQuestions = summary.TotalQuestions
	attempt.TotalPoints = summary.TotalPoints
	attempt.Percentage = summary.Percentage
	attempt.Passed = summary.Passed
	attempt.Status = summary.Status
}

// refreshAttemptTotals reloads an attempt inside a transaction and stores
// the recomputed totals, used after manual grades land.
func (s *gradingService) refreshAttemptTotals(ctx context.Context, txRepo repositories.Repository, attemptID uint) error {
	attempt, err := txRepo.Attempt().GetByIDWithDetails(ctx, nil, attemptID)
	if err != nil {
		return fmt.Errorf("failed to reload attempt: %w", err)
	}

	summary := s.summarizeAttempt(attempt)
	applySummary(attempt, summary)
	if err := txRepo.Attempt().Update(ctx, nil, attempt); err != nil {
		return fmt.Errorf("failed to update attempt totals: %w", err)
	}
	return nil
}

func boolPtr(b bool) *bool {
	return &b
}

func strPtr(s string) *string {
	return &s
}
