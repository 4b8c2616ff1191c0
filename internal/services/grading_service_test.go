package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/classroom-connect/quiz-service/internal/models"
	"github.com/classroom-connect/quiz-service/internal/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGradingService(repo *fakeRepository) GradingService {
	return NewGradingService(nil, repo, testLogger(), validator.New())
}

func singleChoiceQuestion() *models.Question {
	return &models.Question{
		ID:     1,
		Type:   models.SingleChoice,
		Text:   "Which keyword declares a constant?",
		Points: 2,
		Choices: []models.Choice{
			{ID: 1, QuestionID: 1, Text: "const", IsCorrect: true, Order: 0},
			{ID: 2, QuestionID: 1, Text: "var", Order: 1},
			{ID: 3, QuestionID: 1, Text: "let", Order: 2},
		},
	}
}

func multiChoiceQuestion() *models.Question {
	return &models.Question{
		ID:     2,
		Type:   models.MultipleChoice,
		Text:   "Select the reference types",
		Points: 3,
		Choices: []models.Choice{
			{ID: 10, QuestionID: 2, Text: "slice", IsCorrect: true, Order: 0},
			{ID: 11, QuestionID: 2, Text: "int", Order: 1},
			{ID: 12, QuestionID: 2, Text: "map", IsCorrect: true, Order: 2},
		},
	}
}

func TestGradeQuestion_SingleChoice(t *testing.T) {
	service := newTestGradingService(newFakeRepository())
	question := singleChoiceQuestion()

	t.Run("correct choice", func(t *testing.T) {
		result, err := service.GradeQuestion(question, json.RawMessage(`1`))
		if err != nil {
			t.Fatalf("GradeQuestion failed: %v", err)
		}
		if result.IsCorrect == nil || !*result.IsCorrect {
			t.Error("expected correct")
		}
		if result.PointsEarned != 2 {
			t.Errorf("expected 2 points, got %v", result.PointsEarned)
		}
	})

	t.Run("wrong choice", func(t *testing.T) {
		result, _ := service.GradeQuestion(question, json.RawMessage(`2`))
		if result.IsCorrect == nil || *result.IsCorrect {
			t.Error("expected incorrect")
		}
		if result.PointsEarned != 0 {
			t.Errorf("expected 0 points, got %v", result.PointsEarned)
		}
	})

	t.Run("choice id as digit string", func(t *testing.T) {
		result, _ := service.GradeQuestion(question, json.RawMessage(`"1"`))
		if result.IsCorrect == nil || !*result.IsCorrect {
			t.Error("expected digit string to resolve to the choice id")
		}
	})

	t.Run("foreign choice id earns nothing", func(t *testing.T) {
		result, _ := service.GradeQuestion(question, json.RawMessage(`99`))
		if result.PointsEarned != 0 {
			t.Errorf("expected 0 points, got %v", result.PointsEarned)
		}
	})
}

func TestGradeQuestion_MultipleChoice(t *testing.T) {
	service := newTestGradingService(newFakeRepository())
	question := multiChoiceQuestion()

	cases := []struct {
		name    string
		payload string
		points  float64
	}{
		{"exact set", `[10, 12]`, 3},
		{"exact set different order", `[12, 10]`, 3},
		{"subset", `[10]`, 0},
		{"superset", `[10, 11, 12]`, 0},
		{"disjoint", `[11]`, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := service.GradeQuestion(question, json.RawMessage(tc.payload))
			if err != nil {
				t.Fatalf("GradeQuestion failed: %v", err)
			}
			if result.PointsEarned != tc.points {
				t.Errorf("expected %v points, got %v", tc.points, result.PointsEarned)
			}
		})
	}

	t.Run("no correct choices never awards", func(t *testing.T) {
		broken := multiChoiceQuestion()
		for i := range broken.Choices {
			broken.Choices[i].IsCorrect = false
		}
		result, _ := service.GradeQuestion(broken, json.RawMessage(`[10, 11, 12]`))
		if result.PointsEarned != 0 {
			t.Errorf("expected 0 points, got %v", result.PointsEarned)
		}
	})
}

func TestGradeQuestion_TrueFalse_ChoiceOrderIrrelevant(t *testing.T) {
	service := newTestGradingService(newFakeRepository())

	// "False" listed first and flagged correct: a submitted false must
	// grade correct regardless of row order.
	question := &models.Question{
		ID:     3,
		Type:   models.TrueFalse,
		Text:   "Maps are ordered",
		Points: 1,
		Choices: []models.Choice{
			{ID: 20, QuestionID: 3, Text: "False", IsCorrect: true, Order: 0},
			{ID: 21, QuestionID: 3, Text: "True", Order: 1},
		},
	}

	t.Run("boolean literal resolves by text not position", func(t *testing.T) {
		result, _ := service.GradeQuestion(question, json.RawMessage(`false`))
		if result.IsCorrect == nil || !*result.IsCorrect {
			t.Error("expected false to be graded correct")
		}
	})

	t.Run("string literal", func(t *testing.T) {
		result, _ := service.GradeQuestion(question, json.RawMessage(`"false"`))
		if result.IsCorrect == nil || !*result.IsCorrect {
			t.Error("expected string false to be graded correct")
		}
	})

	t.Run("wrong boolean", func(t *testing.T) {
		result, _ := service.GradeQuestion(question, json.RawMessage(`true`))
		if result.IsCorrect == nil || *result.IsCorrect {
			t.Error("expected true to be graded incorrect")
		}
	})

	t.Run("choice id selection", func(t *testing.T) {
		result, _ := service.GradeQuestion(question, json.RawMessage(`20`))
		if result.IsCorrect == nil || !*result.IsCorrect {
			t.Error("expected correct choice id to be graded correct")
		}
	})
}

func TestGradeQuestion_TrueFalse_LegacyFallback(t *testing.T) {
	service := newTestGradingService(newFakeRepository())
	reference := "true"
	question := &models.Question{
		ID:            4,
		Type:          models.TrueFalse,
		Text:          "Slices share backing arrays",
		Points:        1,
		CorrectAnswer: &reference,
	}

	result, _ := service.GradeQuestion(question, json.RawMessage(`true`))
	if result.IsCorrect == nil || !*result.IsCorrect {
		t.Error("expected legacy comparison against correct_answer")
	}

	result, _ = service.GradeQuestion(question, json.RawMessage(`false`))
	if result.IsCorrect == nil || *result.IsCorrect {
		t.Error("expected mismatch to grade incorrect")
	}
}

func TestGradeQuestion_FreeText(t *testing.T) {
	service := newTestGradingService(newFakeRepository())

	t.Run("case-insensitive match against reference", func(t *testing.T) {
		reference := "Polymorphism"
		question := &models.Question{ID: 5, Type: models.FreeText, Points: 2, CorrectAnswer: &reference}

		result, _ := service.GradeQuestion(question, json.RawMessage(`"  polymorphism "`))
		if result.IsCorrect == nil || !*result.IsCorrect {
			t.Error("expected trimmed case-insensitive match")
		}
		if result.PointsEarned != 2 {
			t.Errorf("expected 2 points, got %v", result.PointsEarned)
		}
	})

	t.Run("mismatch grades incorrect", func(t *testing.T) {
		reference := "Polymorphism"
		question := &models.Question{ID: 5, Type: models.FreeText, Points: 2, CorrectAnswer: &reference}

		result, _ := service.GradeQuestion(question, json.RawMessage(`"inheritance"`))
		if result.IsCorrect == nil || *result.IsCorrect {
			t.Error("expected incorrect")
		}
	})

	t.Run("no reference answer stays pending", func(t *testing.T) {
		question := &models.Question{ID: 6, Type: models.FreeText, Points: 5}

		result, _ := service.GradeQuestion(question, json.RawMessage(`"an essay answer"`))
		if result.IsCorrect != nil {
			t.Error("expected nil IsCorrect pending manual review")
		}
		if result.PointsEarned != 0 {
			t.Errorf("expected 0 provisional points, got %v", result.PointsEarned)
		}
	})
}

func TestGradeQuestion_Unanswered(t *testing.T) {
	service := newTestGradingService(newFakeRepository())
	question := singleChoiceQuestion()

	for _, payload := range []string{`"undefined"`, `null`, ``} {
		result, err := service.GradeQuestion(question, json.RawMessage(payload))
		if err != nil {
			t.Fatalf("GradeQuestion failed for %q: %v", payload, err)
		}
		if result.IsCorrect == nil || *result.IsCorrect {
			t.Errorf("payload %q: expected incorrect", payload)
		}
		if result.PointsEarned != 0 {
			t.Errorf("payload %q: expected 0 points", payload)
		}
	}
}

func seedTextAttempt(repo *fakeRepository) (*models.QuizAttempt, *models.QuizAnswer) {
	repo.addUser(&models.User{ID: "staff-1", FullName: "Staff", Email: "staff@example.edu", Role: models.RoleStaff})
	repo.addUser(&models.User{ID: "22Z101", FullName: "Student", Email: "student@example.edu", Role: models.RoleStudent})

	quiz := repo.addQuiz(&models.Quiz{
		Title:        "Essay quiz",
		QuizType:     models.QuizRegular,
		PassingScore: 50,
		CreatedBy:    "staff-1",
		Questions: []models.Question{
			{Type: models.FreeText, Text: "Explain interfaces", Points: 5},
		},
	})

	completed := time.Now()
	attempt := repo.addAttempt(&models.QuizAttempt{
		QuizID:         quiz.ID,
		UserID:         "22Z101",
		Status:         models.AttemptPendingReview,
		StartedAt:      completed.Add(-10 * time.Minute),
		CompletedAt:    &completed,
		TotalQuestions: 1,
		TotalPoints:    5,
	})

	answer := &models.QuizAnswer{
		AttemptID:  attempt.ID,
		QuestionID: quiz.Questions[0].ID,
		TextAnswer: "an interface is a method set contract",
	}
	_ = repo.Answer().CreateBatch(context.Background(), nil, []*models.QuizAnswer{answer})

	return attempt, answer
}

func TestGradeTextAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("manual grade updates answer and attempt", func(t *testing.T) {
		repo := newFakeRepository()
		service := newTestGradingService(repo)
		attempt, answer := seedTextAttempt(repo)

		result, err := service.GradeTextAnswer(ctx, answer.ID, &GradeTextAnswerRequest{
			IsCorrect:    true,
			PointsEarned: 4,
		}, "staff-1")
		if err != nil {
			t.Fatalf("GradeTextAnswer failed: %v", err)
		}
		if result.PointsEarned != 4 {
			t.Errorf("expected 4 points, got %v", result.PointsEarned)
		}

		updated, _ := repo.Attempt().GetByIDWithDetails(ctx, nil, attempt.ID)
		if updated.Status != models.AttemptGraded {
			t.Errorf("expected graded status, got %s", updated.Status)
		}
		if updated.Score != 4 {
			t.Errorf("expected score 4, got %v", updated.Score)
		}
		if updated.Passed != true {
			t.Error("expected 80%% to pass at threshold 50")
		}
	})

	t.Run("points clamp to question maximum", func(t *testing.T) {
		repo := newFakeRepository()
		service := newTestGradingService(repo)
		_, answer := seedTextAttempt(repo)

		result, err := service.GradeTextAnswer(ctx, answer.ID, &GradeTextAnswerRequest{
			IsCorrect:    true,
			PointsEarned: 50,
		}, "staff-1")
		if err != nil {
			t.Fatalf("GradeTextAnswer failed: %v", err)
		}
		if result.PointsEarned != 5 {
			t.Errorf("expected clamp to 5, got %v", result.PointsEarned)
		}
	})

	t.Run("incorrect cannot keep full points", func(t *testing.T) {
		repo := newFakeRepository()
		service := newTestGradingService(repo)
		_, answer := seedTextAttempt(repo)

		result, err := service.GradeTextAnswer(ctx, answer.ID, &GradeTextAnswerRequest{
			IsCorrect:    false,
			PointsEarned: 5,
		}, "staff-1")
		if err != nil {
			t.Fatalf("GradeTextAnswer failed: %v", err)
		}
		if result.PointsEarned != 0 {
			t.Errorf("expected 0 points, got %v", result.PointsEarned)
		}
	})

	t.Run("students cannot grade", func(t *testing.T) {
		repo := newFakeRepository()
		service := newTestGradingService(repo)
		_, answer := seedTextAttempt(repo)

		_, err := service.GradeTextAnswer(ctx, answer.ID, &GradeTextAnswerRequest{IsCorrect: true, PointsEarned: 1}, "22Z101")
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("non-text answers are rejected", func(t *testing.T) {
		repo := newFakeRepository()
		service := newTestGradingService(repo)
		repo.addUser(&models.User{ID: "staff-1", Role: models.RoleStaff})
		repo.addUser(&models.User{ID: "22Z101", Role: models.RoleStudent})

		quiz := repo.addQuiz(&models.Quiz{
			Title: "MCQ quiz", QuizType: models.QuizRegular, PassingScore: 50, CreatedBy: "staff-1",
			Questions: []models.Question{{Type: models.SingleChoice, Text: "q", Points: 1, Choices: []models.Choice{
				{Text: "a", IsCorrect: true}, {Text: "b"},
			}}},
		})
		completed := time.Now()
		attempt := repo.addAttempt(&models.QuizAttempt{QuizID: quiz.ID, UserID: "22Z101", Status: models.AttemptGraded, CompletedAt: &completed})
		answer := &models.QuizAnswer{AttemptID: attempt.ID, QuestionID: quiz.Questions[0].ID}
		_ = repo.Answer().CreateBatch(ctx, nil, []*models.QuizAnswer{answer})

		_, err := service.GradeTextAnswer(ctx, answer.ID, &GradeTextAnswerRequest{IsCorrect: true, PointsEarned: 1}, "staff-1")
		if !errors.Is(err, ErrNotManuallyGraded) {
			t.Errorf("expected ErrNotManuallyGraded, got %v", err)
		}
	})
}

func TestGradeAttempt_PreservesManualGrades(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	service := newTestGradingService(repo)

	repo.addUser(&models.User{ID: "staff-1", Role: models.RoleStaff, Email: "staff@example.edu"})
	repo.addUser(&models.User{ID: "22Z101", Role: models.RoleStudent})

	quiz := repo.addQuiz(&models.Quiz{
		Title: "Mixed quiz", QuizType: models.QuizRegular, PassingScore: 50, CreatedBy: "staff-1",
		Questions: []models.Question{
			{Type: models.SingleChoice, Text: "q1", Points: 2, Choices: []models.Choice{
				{Text: "right", IsCorrect: true}, {Text: "wrong"},
			}},
			{Type: models.FreeText, Text: "q2", Points: 5},
		},
	})

	completed := time.Now()
	attempt := repo.addAttempt(&models.QuizAttempt{
		QuizID: quiz.ID, UserID: "22Z101",
		Status:      models.AttemptGraded,
		StartedAt:   completed.Add(-5 * time.Minute),
		CompletedAt: &completed,
	})

	correctChoiceID := quiz.Questions[0].Choices[0].ID
	selected, _ := json.Marshal([]uint{correctChoiceID})
	grader := "staff-1"
	gradedAt := time.Now()
	manualIsCorrect := true

	answers := []*models.QuizAnswer{
		{
			AttemptID:       attempt.ID,
			QuestionID:      quiz.Questions[0].ID,
			SelectedChoices: datatypes.JSON(selected),
		},
		{
			AttemptID:    attempt.ID,
			QuestionID:   quiz.Questions[1].ID,
			TextAnswer:   "a manually reviewed essay",
			IsCorrect:    &manualIsCorrect,
			PointsEarned: 4,
			GradedBy:     &grader,
			GradedAt:     &gradedAt,
		},
	}
	_ = repo.Answer().CreateBatch(ctx, nil, answers)

	summary, err := service.GradeAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("GradeAttempt failed: %v", err)
	}

	// 2 from the regraded choice question, 4 kept from the manual grade.
	if summary.Score != 6 {
		t.Errorf("expected score 6, got %v", summary.Score)
	}
	if summary.PendingCount != 0 {
		t.Errorf("expected no pending answers, got %d", summary.PendingCount)
	}
	if summary.Status != models.AttemptGraded {
		t.Errorf("expected graded status, got %s", summary.Status)
	}
}
