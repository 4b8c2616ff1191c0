package services

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/classroom-connect/quiz-service/internal/answers"
	"github.com/classroom-connect/quiz-service/internal/models"
)

type gradedSubmission struct {
	answerRows []*models.QuizAnswer
}

// gradeSubmission grades every question of the quiz against the submitted
// payload and finalizes the attempt totals in memory. Questions missing
// from the payload grade as unanswered.
func (s *attemptService) gradeSubmission(quiz *models.Quiz, attempt *models.QuizAttempt, req *SubmitQuizRequest) (*gradedSubmission, error) {
	completedAt := time.Now()

	var (
		rows         []*models.QuizAnswer
		score        float64
		totalPoints  float64
		correctCount int
		pendingCount int
	)

	for i := range quiz.Questions {
		question := &quiz.Questions[i]
		rawPayload := req.Answers[questionKey(question.ID)]

		raw := answers.ParseRaw(rawPayload)
		norm := answers.Normalize(question, raw)

		result, err := s.grading.GradeQuestion(question, rawPayload)
		if err != nil {
			return nil, fmt.Errorf("failed to grade question %d: %w", question.ID, err)
		}

		row, err := buildAnswerRow(attempt.ID, question, norm, result)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)

		totalPoints += question.Points
		score += result.PointsEarned
		if result.IsCorrect == nil {
			pendingCount++
		} else if *result.IsCorrect {
			correctCount++
		}
	}

	percentage := answers.Percentage(score, totalPoints)

	attempt.CompletedAt = &completedAt
	attempt.DurationSeconds = int(completedAt.Sub(attempt.StartedAt).Seconds())
	attempt.Score = score
	attempt.TotalQuestions = len(quiz.Questions)
	attempt.TotalPoints = totalPoints
	attempt.Percentage = percentage
	attempt.Passed = percentage >= quiz.PassingScore
	if pendingCount > 0 {
		attempt.Status = models.AttemptPendingReview
	} else {
		attempt.Status = models.AttemptGraded
	}

	return &gradedSubmission{answerRows: rows}, nil
}

// buildAnswerRow persists the normalized answer shape alongside the grade
// so attempts can be reviewed and regraded without the original payload.
func buildAnswerRow(attemptID uint, question *models.Question, norm answers.Normalized, result *GradeResult) (*models.QuizAnswer, error) {
	row := &models.QuizAnswer{
		AttemptID:    attemptID,
		QuestionID:   question.ID,
		IsCorrect:    result.IsCorrect,
		PointsEarned: result.PointsEarned,
		Feedback:     result.Feedback,
	}

	if len(norm.ChoiceIDs) > 0 {
		encoded, err := json.Marshal(norm.ChoiceIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode selected choices: %w", err)
		}
		row.SelectedChoices = datatypes.JSON(encoded)

		if question.Type == models.TrueFalse {
			if choice := question.ChoiceByID(norm.ChoiceIDs[0]); choice != nil {
				if v, ok := choice.BoolValue(); ok {
					row.BooleanAnswer = &v
				}
			}
		}
	}

	switch question.Type {
	case models.FreeText:
		row.TextAnswer = norm.Text
	case models.TrueFalse:
		// Legacy questions without choice rows keep the boolean literal.
		if len(norm.ChoiceIDs) == 0 && norm.Text != "" {
			row.TextAnswer = norm.Text
			v := norm.Text == "true"
			row.BooleanAnswer = &v
		}
	}

	return row, nil
}
